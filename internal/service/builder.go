package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"zapdispatch/internal/constants"
	apperrors "zapdispatch/internal/errors"
	"zapdispatch/internal/models"

	"github.com/sirupsen/logrus"
)

var (
	ErrNoTemplates    = apperrors.New(apperrors.ErrCodeNoTemplates, "template pool is empty")
	ErrNoContacts     = apperrors.New(apperrors.ErrCodeNoContacts, "contact list is empty")
	ErrNoValidNumbers = apperrors.New(apperrors.ErrCodeNoValidNumbers, "no contact normalized to a valid number")
)

var templateTokenPattern = regexp.MustCompile(`\{\{\s*([\p{L}\p{N}_]+)\s*\}\}`)

var nonDigitPattern = regexp.MustCompile(`\D`)

// BatchBuilder expands (contacts x cadence offsets x template pool) into
// concrete scheduled message rows and persists the batch header.
type BatchBuilder struct {
	store    Store
	instance string
	logger   *logrus.Logger
}

func NewBatchBuilder(store Store, instance string, logger *logrus.Logger) *BatchBuilder {
	return &BatchBuilder{
		store:    store,
		instance: instance,
		logger:   logger,
	}
}

// CreateBatch persists the batch header and returns its id.
func (b *BatchBuilder) CreateBatch(ctx context.Context, listID, listName *string) (int64, error) {
	sourceKind := models.BatchSourceAdHoc
	if listID != nil || listName != nil {
		sourceKind = models.BatchSourceList
	}

	batch := &models.Batch{
		Instance:       b.instance,
		SourceKind:     sourceKind,
		SourceListID:   listID,
		SourceListName: listName,
		Status:         models.BatchStatusCreated,
	}

	id, err := b.store.CreateBatch(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to persist batch header: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"batchId":    id,
		"sourceKind": sourceKind,
	}).Info("Created dispatch batch")

	return id, nil
}

// BuildMessages emits one message row per (valid contact, moment, template).
// Moments are the anchor plus one per cadence day-offset. Rows are ordered
// contacts-major, moments-minor, templates-innermost; scheduling order is
// re-derived from timestamps later, so the ordering only aids testability.
func (b *BatchBuilder) BuildMessages(batchID int64, contacts []models.Contact, templatePool []string, anchor time.Time, cadenceDays []int, listID *string) ([]models.MessageInsert, error) {
	if len(templatePool) == 0 {
		return nil, ErrNoTemplates
	}
	if len(contacts) == 0 {
		return nil, ErrNoContacts
	}

	moments := make([]time.Time, 0, 1+len(cadenceDays))
	moments = append(moments, anchor)
	for _, days := range cadenceDays {
		moments = append(moments, anchor.Add(time.Duration(days)*24*time.Hour))
	}

	var rows []models.MessageInsert
	dropped := 0
	for _, contact := range contacts {
		recipient := NormalizeAddress(contact.Address)
		if recipient == "" {
			// Contacts without a resolvable number are excluded, not an error.
			dropped++
			continue
		}

		for _, moment := range moments {
			for _, template := range templatePool {
				rows = append(rows, models.MessageInsert{
					BatchID:      batchID,
					SourceListID: listID,
					Recipient:    recipient,
					Body:         RenderTemplate(template, contact.Fields),
					ScheduledAt:  moment,
				})
			}
		}
	}

	if dropped > 0 {
		b.logger.WithFields(logrus.Fields{
			"batchId": batchID,
			"dropped": dropped,
		}).Warn("Dropped contacts without a valid number")
	}

	if len(rows) == 0 {
		return nil, ErrNoValidNumbers
	}

	return rows, nil
}

// NormalizeAddress reduces an address to digits and ensures a country code:
// a bare national-style number gets the default country prefix. Addresses
// that normalize to nothing return the empty string.
func NormalizeAddress(address string) string {
	digits := nonDigitPattern.ReplaceAllString(address, "")
	if digits == "" {
		return ""
	}

	if len(digits) <= constants.NationalNumberMaxDigits {
		return constants.DefaultCountryCode + digits
	}

	return digits
}

// RenderTemplate substitutes {{field}} tokens against the contact's fields.
// Unresolved fields render as empty.
func RenderTemplate(template string, fields map[string]string) string {
	return templateTokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := templateTokenPattern.FindStringSubmatch(token)[1]
		return strings.TrimSpace(fields[name])
	})
}
