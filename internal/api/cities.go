package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adrianmcphee/geobase"
	"github.com/adrianmcphee/geobase/cities"
)

type createCityRequest struct {
	Name       string `json:"name" form:"name" binding:"required"`
	StateCode  string `json:"state_code" form:"state_code" binding:"required"`
	Population *int64 `json:"population" form:"population" binding:"required"`
}

type cityPopulationRequest struct {
	City       string `json:"city" form:"city" binding:"required"`
	State      string `json:"state" form:"state" binding:"required"`
	Population *int64 `json:"population" form:"population" binding:"required"`
}

type cityKeyRequest struct {
	City  string `json:"city" form:"city" binding:"required"`
	State string `json:"state" form:"state" binding:"required"`
}

func (s *Server) listCities(c *gin.Context) {
	docs, err := s.cache.CachedRead(c.Request.Context(), cities.Collection, "", false)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{CitiesKey: docs, "Number of cities": len(docs)})
}

func (s *Server) getCity(c *gin.Context) {
	city, err := s.cities.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{CitiesKey: city})
}

func (s *Server) createCity(c *gin.Context) {
	var req createCityRequest
	if err := c.ShouldBind(&req); err != nil {
		s.invalidInput(c, err)
		return
	}
	if *req.Population < 0 {
		s.invalidInput(c, errors.New("population cannot be negative"))
		return
	}

	id, err := s.cities.Create(c.Request.Context(), cities.City{
		Name:       req.Name,
		StateCode:  req.StateCode,
		Population: req.Population,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	s.cache.ClearCache()
	c.JSON(http.StatusCreated, gin.H{SuccessKey: true, geobase.IDField: id})
}

func (s *Server) setCityPopulation(c *gin.Context) {
	var req cityPopulationRequest
	if err := c.ShouldBind(&req); err != nil {
		s.invalidInput(c, err)
		return
	}
	if err := s.cities.SetPopulation(c.Request.Context(), req.City, req.State, *req.Population); err != nil {
		s.handleError(c, err)
		return
	}
	s.cache.ClearCache()
	c.JSON(http.StatusOK, gin.H{SuccessKey: true})
}

func (s *Server) deleteCity(c *gin.Context) {
	var req cityKeyRequest
	if err := c.ShouldBind(&req); err != nil {
		s.invalidInput(c, err)
		return
	}
	if _, err := s.cities.Delete(c.Request.Context(), req.City, req.State); err != nil {
		s.handleError(c, err)
		return
	}
	s.cache.ClearCache()
	c.JSON(http.StatusOK, gin.H{SuccessKey: true})
}
