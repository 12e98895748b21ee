package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// GetClients returns all clients
func (h *Handlers) GetClients(c *gin.Context) {
	clients, err := h.store.ListClients()
	if err != nil {
		respondError(c, err, "Failed to fetch clients")
		return
	}
	c.JSON(http.StatusOK, clients)
}

// CreateClient creates a new client
func (h *Handlers) CreateClient(c *gin.Context) {
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	client := model.Client{
		Name:   req.Name,
		AFM:    req.AFM,
		Email:  req.Email,
		Phone:  req.Phone,
		Active: active,
	}
	if err := h.store.CreateClient(&client); err != nil {
		respondError(c, err, "Failed to create client")
		return
	}
	c.JSON(http.StatusCreated, client)
}

// GetClient returns a single client with its obligation profiles
func (h *Handlers) GetClient(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	client, err := h.store.GetClient(id)
	if err != nil {
		respondError(c, err, "Client not found")
		return
	}
	c.JSON(http.StatusOK, client)
}

// UpdateClient updates an existing client
func (h *Handlers) UpdateClient(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	client, err := h.store.GetClient(id)
	if err != nil {
		respondError(c, err, "Client not found")
		return
	}
	client.Name = req.Name
	client.AFM = req.AFM
	client.Email = req.Email
	client.Phone = req.Phone
	if req.Active != nil {
		client.Active = *req.Active
	}
	if err := h.store.SaveClient(client); err != nil {
		respondError(c, err, "Failed to update client")
		return
	}
	c.JSON(http.StatusOK, client)
}

// DeleteClient soft-deletes a client
func (h *Handlers) DeleteClient(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteClient(id); err != nil {
		respondError(c, err, "Failed to delete client")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Client deleted"})
}

// GetClientProfiles returns a client's obligation profile set
func (h *Handlers) GetClientProfiles(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := h.store.GetClient(id); err != nil {
		respondError(c, err, "Client not found")
		return
	}
	profiles, err := h.store.ProfilesForClient(id)
	if err != nil {
		respondError(c, err, "Failed to fetch profiles")
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// AddClientProfile assigns one obligation type to a client
func (h *Handlers) AddClientProfile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if _, err := h.store.GetClient(id); err != nil {
		respondError(c, err, "Client not found")
		return
	}
	if _, err := h.store.GetType(req.ObligationTypeID); err != nil {
		respondError(c, err, "Obligation type not found")
		return
	}
	if err := h.store.AddProfile(id, req.ObligationTypeID); err != nil {
		respondError(c, err, "Failed to add profile")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Profile added"})
}

// RemoveClientProfile removes one obligation type from a client
func (h *Handlers) RemoveClientProfile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	typeID, ok := paramID(c, "typeID")
	if !ok {
		return
	}
	if err := h.store.RemoveProfiles(id, []uint{typeID}); err != nil {
		respondError(c, err, "Failed to remove profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile removed"})
}

// GetObligationTypes returns all obligation types
func (h *Handlers) GetObligationTypes(c *gin.Context) {
	types, err := h.store.ListTypes()
	if err != nil {
		respondError(c, err, "Failed to fetch obligation types")
		return
	}
	c.JSON(http.StatusOK, types)
}

// CreateObligationType creates a new obligation type
func (h *Handlers) CreateObligationType(c *gin.Context) {
	var req ObligationTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	t := model.ObligationType{
		Code:                req.Code,
		Name:                req.Name,
		Group:               req.Group,
		DeadlineDay:         req.DeadlineDay,
		DeadlineMonthOffset: req.DeadlineMonthOffset,
	}
	if err := h.store.CreateType(&t); err != nil {
		respondError(c, err, "Failed to create obligation type")
		return
	}
	c.JSON(http.StatusCreated, t)
}

// GetObligationType returns a single obligation type
func (h *Handlers) GetObligationType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.store.GetType(id)
	if err != nil {
		respondError(c, err, "Obligation type not found")
		return
	}
	c.JSON(http.StatusOK, t)
}

// UpdateObligationType updates an existing obligation type
func (h *Handlers) UpdateObligationType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ObligationTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	t, err := h.store.GetType(id)
	if err != nil {
		respondError(c, err, "Obligation type not found")
		return
	}
	t.Code = req.Code
	t.Name = req.Name
	t.Group = req.Group
	if req.DeadlineDay > 0 {
		t.DeadlineDay = req.DeadlineDay
	}
	if req.DeadlineMonthOffset >= 0 {
		t.DeadlineMonthOffset = req.DeadlineMonthOffset
	}
	if err := h.store.SaveType(t); err != nil {
		respondError(c, err, "Failed to update obligation type")
		return
	}
	c.JSON(http.StatusOK, t)
}

// DeleteObligationType soft-deletes an obligation type
func (h *Handlers) DeleteObligationType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteType(id); err != nil {
		respondError(c, err, "Failed to delete obligation type")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Obligation type deleted"})
}

// GetProfileGroups returns all profile groups with their types
func (h *Handlers) GetProfileGroups(c *gin.Context) {
	groups, err := h.store.ListProfileGroups()
	if err != nil {
		respondError(c, err, "Failed to fetch profile groups")
		return
	}
	c.JSON(http.StatusOK, groups)
}

// CreateProfileGroup creates a named bundle of obligation types
func (h *Handlers) CreateProfileGroup(c *gin.Context) {
	var req ProfileGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	types, err := h.store.TypesByID(req.ObligationTypeIDs)
	if err != nil {
		respondError(c, err, "Failed to resolve obligation types")
		return
	}
	group := model.ProfileGroup{Name: req.Name}
	for _, id := range req.ObligationTypeIDs {
		t, ok := types[id]
		if !ok {
			badRequest(c, "Unknown obligation type in group")
			return
		}
		group.ObligationTypes = append(group.ObligationTypes, t)
	}
	if err := h.store.CreateProfileGroup(&group); err != nil {
		respondError(c, err, "Failed to create profile group")
		return
	}
	c.JSON(http.StatusCreated, group)
}
