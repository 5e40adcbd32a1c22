package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adrianmcphee/geobase"
	"github.com/adrianmcphee/geobase/states"
)

type createStateRequest struct {
	CountryName string `json:"country_name" form:"country_name" binding:"required"`
	StateCode   string `json:"state_code" form:"state_code" binding:"required"`
	Population  *int64 `json:"population" form:"population" binding:"required"`
}

type statePopulationRequest struct {
	State      string `json:"state" form:"state" binding:"required"`
	Population *int64 `json:"population" form:"population" binding:"required"`
}

type stateKeyRequest struct {
	State string `json:"state" form:"state" binding:"required"`
}

func (s *Server) listStates(c *gin.Context) {
	docs, err := s.cache.CachedRead(c.Request.Context(), states.Collection, "", false)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{StatesKey: docs, "Number of states": len(docs)})
}

func (s *Server) getState(c *gin.Context) {
	state, err := s.states.ReadOne(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{StatesKey: state})
}

func (s *Server) createState(c *gin.Context) {
	var req createStateRequest
	if err := c.ShouldBind(&req); err != nil {
		s.invalidInput(c, err)
		return
	}
	if *req.Population < 0 {
		s.invalidInput(c, errors.New("population cannot be negative"))
		return
	}

	id, err := s.states.Create(c.Request.Context(), states.State{
		CountryName: req.CountryName,
		StateCode:   req.StateCode,
		Population:  req.Population,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	s.cache.ClearCache()
	c.JSON(http.StatusCreated, gin.H{SuccessKey: true, geobase.IDField: id})
}

func (s *Server) setStatePopulation(c *gin.Context) {
	var req statePopulationRequest
	if err := c.ShouldBind(&req); err != nil {
		s.invalidInput(c, err)
		return
	}
	if err := s.states.SetPopulation(c.Request.Context(), req.State, *req.Population); err != nil {
		s.handleError(c, err)
		return
	}
	s.cache.ClearCache()
	c.JSON(http.StatusOK, gin.H{SuccessKey: true})
}

func (s *Server) deleteState(c *gin.Context) {
	var req stateKeyRequest
	if err := c.ShouldBind(&req); err != nil {
		s.invalidInput(c, err)
		return
	}
	if _, err := s.states.Delete(c.Request.Context(), req.State); err != nil {
		s.handleError(c, err)
		return
	}
	s.cache.ClearCache()
	c.JSON(http.StatusOK, gin.H{SuccessKey: true})
}
