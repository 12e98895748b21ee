// Package engine holds the obligation generation and lifecycle logic.
package engine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/apperr"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/metrics"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

// GenerationStore is the slice of the data layer the generator needs.
type GenerationStore interface {
	ActiveClients(ids []uint) ([]model.Client, error)
	ProfilesForClient(clientID uint) ([]model.ObligationProfile, error)
	CreateObligation(o *model.Obligation) error
}

// ClientGenerationDetail is one client's entry in the generation
// report. Created/Skipped carry obligation type codes so the operator
// UI can show exactly what happened.
type ClientGenerationDetail struct {
	ClientID   uint     `json:"client_id"`
	ClientName string   `json:"client_name"`
	Created    []string `json:"created"`
	Skipped    []string `json:"skipped"`
	Note       string   `json:"note,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// GenerationResult is the stable, fully enumerable outcome of one
// GenerateMonth call.
type GenerationResult struct {
	Month            int                      `json:"month"`
	Year             int                      `json:"year"`
	CreatedCount     int                      `json:"created_count"`
	SkippedCount     int                      `json:"skipped_count"`
	ClientsProcessed int                      `json:"clients_processed"`
	Details          []ClientGenerationDetail `json:"details"`
}

// Generator expands client obligation profiles into concrete monthly
// obligation instances.
type Generator struct {
	store   GenerationStore
	metrics *metrics.Metrics
}

func NewGenerator(store GenerationStore, m *metrics.Metrics) *Generator {
	return &Generator{store: store, metrics: m}
}

// GenerateMonth creates the pending obligations for (month, year) for
// the given clients, or for every active client when clientIDs is
// empty. Existing (client, type, month, year) rows are skipped, not
// errors; a failing insert is recorded on that client's detail entry
// and generation moves on to the remaining clients. Calling twice with
// the same arguments creates nothing the second time.
func (g *Generator) GenerateMonth(month, year int, clientIDs []uint) (*GenerationResult, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month must be 1-12, got %d", apperr.ErrValidation, month)
	}
	if year < 2000 || year > 2100 {
		return nil, fmt.Errorf("%w: implausible year %d", apperr.ErrValidation, year)
	}

	clients, err := g.store.ActiveClients(clientIDs)
	if err != nil {
		return nil, fmt.Errorf("generation aborted: %w", err)
	}

	result := &GenerationResult{Month: month, Year: year}
	for _, client := range clients {
		detail := g.generateForClient(client, month, year)
		result.CreatedCount += len(detail.Created)
		result.SkippedCount += len(detail.Skipped)
		result.Details = append(result.Details, detail)
	}
	result.ClientsProcessed = len(result.Details)

	if g.metrics != nil {
		g.metrics.ObligationsGenerated.Add(float64(result.CreatedCount))
		g.metrics.ObligationsSkipped.Add(float64(result.SkippedCount))
	}
	logrus.Infof("Generated %d obligations for %02d/%d (%d skipped, %d clients)",
		result.CreatedCount, month, year, result.SkippedCount, result.ClientsProcessed)
	return result, nil
}

func (g *Generator) generateForClient(client model.Client, month, year int) ClientGenerationDetail {
	detail := ClientGenerationDetail{
		ClientID:   client.ID,
		ClientName: client.Name,
		Created:    []string{},
		Skipped:    []string{},
	}

	profiles, err := g.store.ProfilesForClient(client.ID)
	if err != nil {
		detail.Error = err.Error()
		return detail
	}
	if len(profiles) == 0 {
		detail.Note = "no profile configured"
		return detail
	}

	for _, profile := range profiles {
		if profile.ObligationType == nil {
			detail.Error = fmt.Sprintf("profile %d references missing obligation type %d",
				profile.ID, profile.ObligationTypeID)
			return detail
		}
		code := profile.ObligationType.Code

		obligation := model.Obligation{
			ClientID:         client.ID,
			ObligationTypeID: profile.ObligationTypeID,
			Month:            month,
			Year:             year,
			Deadline:         profile.ObligationType.Deadline(month, year),
			Status:           model.StatusPending,
		}
		err := g.store.CreateObligation(&obligation)
		switch {
		case err == nil:
			detail.Created = append(detail.Created, code)
		case errors.Is(err, apperr.ErrDuplicate):
			// Idempotence key already present, possibly from a racing
			// generator. Either way the work item exists.
			detail.Skipped = append(detail.Skipped, code)
		default:
			detail.Error = err.Error()
			logrus.Errorf("Failed to create obligation %s for client %d: %v", code, client.ID, err)
			return detail
		}
	}
	return detail
}
