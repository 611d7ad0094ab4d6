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

package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/adom-inc/ads123x/pkg/ads123x"
	"github.com/adom-inc/ads123x/pkg/service/sampler"
	"github.com/adom-inc/ads123x/pkg/service/store"
)

const (
	defaultSampleLimit = 100
	maxSampleLimit     = 10000
)

// Service is the part of the sampler exposed over HTTP.
type Service interface {
	Latest() (store.Sample, error)
	Recent(n int) ([]store.Sample, error)
	Status() sampler.Status
	Configuration() ads123x.Configuration
	SetConfiguration(cfg ads123x.Configuration) error
	Update(u sampler.ConfigurationUpdate) (ads123x.Configuration, error)
	SetPower(on bool) error
	Reset() error
	Standby(ctx context.Context) error
	Resume()
}

type powerRequest struct {
	On bool `json:"on"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) registerAPI(g *echo.Group) {
	g.GET("/sample", s.getSample)
	g.GET("/samples", s.getSamples)
	g.GET("/status", s.getStatus)
	g.GET("/config", s.getConfig)
	g.PUT("/config", s.putConfig)
	g.PATCH("/config", s.patchConfig)
	g.POST("/power", s.postPower)
	g.POST("/reset", s.postReset)
	g.POST("/standby", s.postStandby)
	g.POST("/resume", s.postResume)
}

func (s *Server) getSample(c echo.Context) error {
	sample, err := s.service.Latest()
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, sample)
}

func (s *Server) getSamples(c echo.Context) error {
	limit := defaultSampleLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit '" + raw + "'"})
		}
		limit = min(n, maxSampleLimit)
	}
	samples, err := s.service.Recent(limit)
	if err != nil {
		return s.errorResponse(c, err)
	}
	if samples == nil {
		samples = []store.Sample{}
	}
	return c.JSON(http.StatusOK, samples)
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Status())
}

func (s *Server) getConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Configuration())
}

func (s *Server) putConfig(c echo.Context) error {
	var cfg ads123x.Configuration
	if err := c.Bind(&cfg); err != nil {
		return s.errorResponse(c, ads123x.InvalidConfigError)
	}
	if err := s.service.SetConfiguration(cfg); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, cfg)
}

func (s *Server) patchConfig(c echo.Context) error {
	var u sampler.ConfigurationUpdate
	if err := c.Bind(&u); err != nil {
		return s.errorResponse(c, ads123x.InvalidConfigError)
	}
	cfg, err := s.service.Update(u)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, cfg)
}

func (s *Server) postPower(c echo.Context) error {
	var req powerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if err := s.service.SetPower(req.On); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, s.service.Status())
}

func (s *Server) postReset(c echo.Context) error {
	if err := s.service.Reset(); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, s.service.Status())
}

func (s *Server) postStandby(c echo.Context) error {
	if err := s.service.Standby(c.Request().Context()); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, s.service.Status())
}

func (s *Server) postResume(c echo.Context) error {
	s.service.Resume()
	return c.JSON(http.StatusOK, s.service.Status())
}

// errorResponse maps driver errors onto HTTP status codes.
func (s *Server) errorResponse(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, sampler.NotAvailableError):
		code = http.StatusNotFound
	case ads123x.IsInvalidConfig(err):
		code = http.StatusBadRequest
	case ads123x.IsBusy(err):
		code = http.StatusConflict
	case ads123x.IsNotPowered(err):
		code = http.StatusServiceUnavailable
	case ads123x.IsTimeout(err):
		code = http.StatusGatewayTimeout
	default:
		s.log.Warn().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	return c.JSON(code, errorResponse{Error: err.Error(), Kind: sampler.ErrorKind(err)})
}
