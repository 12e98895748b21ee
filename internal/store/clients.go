package store

import (
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// ActiveClients returns the active clients with the given ids, or every
// active client when ids is empty.
func (s *Store) ActiveClients(ids []uint) ([]model.Client, error) {
	q := s.db.Where("active = ?", true)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	var clients []model.Client
	if err := q.Order("name ASC").Find(&clients).Error; err != nil {
		return nil, wrap("failed to list active clients", err)
	}
	return clients, nil
}

func (s *Store) GetClient(id uint) (*model.Client, error) {
	var client model.Client
	if err := s.db.First(&client, id).Error; err != nil {
		return nil, wrap("failed to get client", err)
	}
	return &client, nil
}

func (s *Store) ListClients() ([]model.Client, error) {
	var clients []model.Client
	if err := s.db.Order("name ASC").Find(&clients).Error; err != nil {
		return nil, wrap("failed to list clients", err)
	}
	return clients, nil
}

func (s *Store) CreateClient(client *model.Client) error {
	return wrap("failed to create client", s.db.Create(client).Error)
}

func (s *Store) SaveClient(client *model.Client) error {
	return wrap("failed to save client", s.db.Save(client).Error)
}

func (s *Store) DeleteClient(id uint) error {
	return wrap("failed to delete client", s.db.Delete(&model.Client{}, id).Error)
}

// ListTypes returns the obligation type catalog ordered by group/code.
func (s *Store) ListTypes() ([]model.ObligationType, error) {
	var types []model.ObligationType
	if err := s.db.Order("`group` ASC, code ASC").Find(&types).Error; err != nil {
		return nil, wrap("failed to list obligation types", err)
	}
	return types, nil
}

func (s *Store) GetType(id uint) (*model.ObligationType, error) {
	var t model.ObligationType
	if err := s.db.First(&t, id).Error; err != nil {
		return nil, wrap("failed to get obligation type", err)
	}
	return &t, nil
}

// TypesByID loads the catalog entries for the given ids keyed by id.
func (s *Store) TypesByID(ids []uint) (map[uint]model.ObligationType, error) {
	var types []model.ObligationType
	if err := s.db.Where("id IN ?", ids).Find(&types).Error; err != nil {
		return nil, wrap("failed to load obligation types", err)
	}
	out := make(map[uint]model.ObligationType, len(types))
	for _, t := range types {
		out[t.ID] = t
	}
	return out, nil
}

func (s *Store) CreateType(t *model.ObligationType) error {
	return wrap("failed to create obligation type", s.db.Create(t).Error)
}

func (s *Store) SaveType(t *model.ObligationType) error {
	return wrap("failed to save obligation type", s.db.Save(t).Error)
}

func (s *Store) DeleteType(id uint) error {
	return wrap("failed to delete obligation type", s.db.Delete(&model.ObligationType{}, id).Error)
}

// ProfilesForClient returns the client's active profiles with their
// types preloaded.
func (s *Store) ProfilesForClient(clientID uint) ([]model.ObligationProfile, error) {
	var profiles []model.ObligationProfile
	err := s.db.Preload("ObligationType").
		Where("client_id = ?", clientID).
		Find(&profiles).Error
	if err != nil {
		return nil, wrap("failed to list profiles", err)
	}
	return profiles, nil
}

// AddProfile inserts one (client, type) profile row. An existing pair
// surfaces as apperr.ErrDuplicate through the composite unique index.
func (s *Store) AddProfile(clientID, typeID uint) error {
	p := model.ObligationProfile{ClientID: clientID, ObligationTypeID: typeID}
	return wrap("failed to add profile", s.db.Create(&p).Error)
}

// RemoveProfiles soft-deletes the client's profiles for the given types.
func (s *Store) RemoveProfiles(clientID uint, typeIDs []uint) error {
	if len(typeIDs) == 0 {
		return nil
	}
	err := s.db.Where("client_id = ? AND obligation_type_id IN ?", clientID, typeIDs).
		Delete(&model.ObligationProfile{}).Error
	return wrap("failed to remove profiles", err)
}

func (s *Store) ListProfileGroups() ([]model.ProfileGroup, error) {
	var groups []model.ProfileGroup
	if err := s.db.Preload("ObligationTypes").Order("name ASC").Find(&groups).Error; err != nil {
		return nil, wrap("failed to list profile groups", err)
	}
	return groups, nil
}

func (s *Store) CreateProfileGroup(g *model.ProfileGroup) error {
	return wrap("failed to create profile group", s.db.Create(g).Error)
}

// GroupTypeIDs expands profile group ids into the union of their member
// obligation type ids.
func (s *Store) GroupTypeIDs(groupIDs []uint) ([]uint, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var groups []model.ProfileGroup
	if err := s.db.Preload("ObligationTypes").Where("id IN ?", groupIDs).Find(&groups).Error; err != nil {
		return nil, wrap("failed to expand profile groups", err)
	}
	seen := make(map[uint]bool)
	var ids []uint
	for _, g := range groups {
		for _, t := range g.ObligationTypes {
			if !seen[t.ID] {
				seen[t.ID] = true
				ids = append(ids, t.ID)
			}
		}
	}
	return ids, nil
}
