// Copyright 2025 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package ui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/adom-inc/ads123x/pkg/ads123x"
	"github.com/adom-inc/ads123x/pkg/service/sampler"
	"github.com/adom-inc/ads123x/pkg/service/store"
)

const (
	refreshInterval = 250 * time.Millisecond
	historyLength   = 100
)

// Controller is the part of the sampler used by the UI.
type Controller interface {
	Latest() (store.Sample, error)
	Recent(n int) ([]store.Sample, error)
	Status() sampler.Status
	Variant() ads123x.Variant
	Configuration() ads123x.Configuration
	SetConfiguration(cfg ads123x.Configuration) error
	SetPower(on bool) error
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

type Root struct {
	ctrl   Controller
	term   string
	width  int
	height int

	latest    *store.Sample
	status    sampler.Status
	lastReads uint64
	lastTick  time.Time
	rate      float64
	message   string
	history   viewport.Model
}

var _ tea.Model = Root{}

// NewRoot creates the root model for a terminal of the given type and size.
func NewRoot(ctrl Controller, term string, width, height int) Root {
	r := Root{
		ctrl:   ctrl,
		term:   term,
		width:  width,
		height: height,
	}
	r.history = viewport.New(width, r.historyHeight())
	return r
}

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (r Root) Init() tea.Cmd {
	return doRefresh()
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case refreshMsg:
		r = r.refresh(time.Time(msg))
		return r, doRefresh()
	case tea.WindowSizeMsg:
		r.height = msg.Height
		r.width = msg.Width
		r.history.Width = msg.Width
		r.history.Height = r.historyHeight()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return r, tea.Quit
		case "g":
			r = r.changeConfiguration(nextGain)
		case "s":
			r = r.changeConfiguration(nextSpeed)
		case "c":
			r = r.changeConfiguration(nextChannel)
		case "p":
			on := r.status.State == ads123x.StatePoweredDown.String()
			if err := r.ctrl.SetPower(on); err != nil {
				r.message = err.Error()
			} else {
				r.message = ""
			}
			r.status = r.ctrl.Status()
		}
	}

	// Handle keyboard and mouse events in the viewport
	var cmd tea.Cmd
	r.history, cmd = r.history.Update(msg)
	cmds = append(cmds, cmd)

	return r, tea.Batch(cmds...)
}

// refresh fetches the latest sample, status and history.
func (r Root) refresh(now time.Time) Root {
	r.status = r.ctrl.Status()
	if latest, err := r.ctrl.Latest(); err == nil {
		r.latest = &latest
	}
	if !r.lastTick.IsZero() {
		if elapsed := now.Sub(r.lastTick).Seconds(); elapsed > 0 {
			r.rate = float64(r.status.Reads-r.lastReads) / elapsed
		}
	}
	r.lastTick = now
	r.lastReads = r.status.Reads
	if recent, err := r.ctrl.Recent(historyLength); err == nil {
		r.history.SetContent(formatHistory(recent))
	}
	return r
}

// changeConfiguration applies the next value of one configuration field.
func (r Root) changeConfiguration(next func(ads123x.Variant, ads123x.Configuration) ads123x.Configuration) Root {
	v := r.ctrl.Variant()
	cfg := next(v, r.ctrl.Configuration())
	if err := r.ctrl.SetConfiguration(cfg); err != nil {
		r.message = err.Error()
	} else {
		r.message = "Queued " + cfg.String()
	}
	r.status = r.ctrl.Status()
	return r
}

func nextGain(v ads123x.Variant, cfg ads123x.Configuration) ads123x.Configuration {
	cfg.Gain = cycle(v.Gains, cfg.Gain)
	return cfg
}

func nextSpeed(v ads123x.Variant, cfg ads123x.Configuration) ads123x.Configuration {
	cfg.Speed = cycle(v.Speeds, cfg.Speed)
	return cfg
}

func nextChannel(v ads123x.Variant, cfg ads123x.Configuration) ads123x.Configuration {
	cfg.Channel = cycle(v.Channels, cfg.Channel)
	return cfg
}

// cycle returns the element after current, wrapping around.
func cycle[T comparable](values []T, current T) T {
	if len(values) == 0 {
		return current
	}
	i := slices.Index(values, current)
	return values[(i+1)%len(values)]
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (r Root) View() string {
	return r.headerView() + r.history.View() + "\n" + r.footerView()
}

func (r Root) headerView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("ADS123x %s", r.status.Variant)))
	b.WriteString("  " + r.status.State)
	if r.status.Paused {
		b.WriteString(" (paused)")
	}
	b.WriteString("\n")
	if r.latest != nil {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			valueStyle.Render(fmt.Sprintf("%12d", r.latest.Value)),
			fmt.Sprintf("  #%s  %.1f/s", humanize.Comma(int64(r.latest.Seq)), r.rate),
		))
	} else {
		b.WriteString("No sample yet")
	}
	b.WriteString("\n")
	b.WriteString(r.status.Configuration.String())
	if r.status.Pending != nil {
		b.WriteString(" -> " + r.status.Pending.String())
	}
	b.WriteString(fmt.Sprintf("  errors %s", humanize.Comma(int64(r.status.Errors))))
	b.WriteString("\n")
	if r.status.LastError != "" {
		b.WriteString(errorStyle.Render(r.status.LastError))
	}
	b.WriteString("\n")
	return b.String()
}

func (r Root) footerView() string {
	s := helpStyle.Render("g - Gain  s - Speed  c - Channel  p - Power  q - Disconnect")
	if r.message != "" {
		s = r.message + "\n" + s
	}
	return s + "\n"
}

func (r Root) historyHeight() int {
	h := r.height - lipgloss.Height(r.headerView()) - 3
	if h < 1 {
		return 1
	}
	return h
}

func formatHistory(samples []store.Sample) string {
	var b strings.Builder
	for i := len(samples) - 1; i >= 0; i-- {
		s := samples[i]
		fmt.Fprintf(&b, "%s  %8s  %12d  gain=%d %s %s\n",
			s.Time.Format("15:04:05.000"), humanize.Comma(int64(s.Seq)), s.Value, s.Gain, s.Speed, s.Channel)
	}
	return b.String()
}

type refreshMsg time.Time

func doRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}
