package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"zap-shift-api/cache"
	"zap-shift-api/models"
	"zap-shift-api/payments"
	"zap-shift-api/statemachine"
	"zap-shift-api/tracking"

	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrParcelNotFound     = errors.New("parcel not found")
	ErrParcelAlreadyPaid  = errors.New("parcel is already paid")
	ErrRiderNotFound      = errors.New("rider not found")
	ErrRiderUnavailable   = errors.New("rider is not available for assignment")
	ErrInvalidCost        = errors.New("cost must be a positive amount")
	ErrUnknownStatus      = errors.New("unknown delivery status")
	ErrAssignmentRequired = errors.New("rider assignment must go through the assign operation")
)

// Tracking ids carry 32 bits of randomness; a collision is close to
// impossible but the unique index makes it loud, so retry a few times.
const maxTrackingAttempts = 3

// Engine owns the parcel lifecycle: creation, checkout, idempotent payment
// confirmation, rider assignment, and delivery-status transitions. Every
// multi-row step runs inside a single database transaction.
type Engine struct {
	db         *gorm.DB
	gateway    payments.CheckoutGateway
	cache      *cache.TrackingCache // optional
	siteDomain string
}

func New(db *gorm.DB, gateway payments.CheckoutGateway, trackingCache *cache.TrackingCache, siteDomain string) *Engine {
	return &Engine{
		db:         db,
		gateway:    gateway,
		cache:      trackingCache,
		siteDomain: siteDomain,
	}
}

// CreateParcel stores a new unpaid parcel in the pending state
func (e *Engine) CreateParcel(ctx context.Context, parcel *models.Parcel) error {
	if parcel.Cost <= 0 {
		return ErrInvalidCost
	}
	parcel.PaymentStatus = models.PaymentUnpaid
	parcel.DeliveryStatus = models.StatusPending
	parcel.TrackingID = nil
	return e.db.WithContext(ctx).Create(parcel).Error
}

// CheckoutParams is what the client sends to open a hosted payment flow
type CheckoutParams struct {
	ParcelID    uint
	Cost        float64
	ParcelName  string
	SenderEmail string
}

// CreateCheckoutSession opens a gateway checkout session for the parcel and
// returns the redirect URL. The parcel itself is not mutated; nothing is
// confirmed until the client returns from the hosted flow.
func (e *Engine) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	if params.Cost <= 0 {
		return "", ErrInvalidCost
	}
	amountMinor := int64(math.Round(params.Cost * 100))

	session, err := e.gateway.CreateSession(ctx, payments.CreateSessionParams{
		AmountMinor:   amountMinor,
		Currency:      "USD",
		ProductName:   params.ParcelName,
		CustomerEmail: params.SenderEmail,
		Metadata: map[string]string{
			"parcelId":   strconv.FormatUint(uint64(params.ParcelID), 10),
			"parcelName": params.ParcelName,
		},
		SuccessURL: e.siteDomain + "/dashboard/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  e.siteDomain + "/dashboard/payment-cancelled",
	})
	if err != nil {
		return "", err
	}
	return session.URL, nil
}

// PaymentResult is the outcome of a confirmation attempt
type PaymentResult struct {
	Success          bool
	AlreadyProcessed bool
	Parcel           *models.Parcel
	Payment          *models.Payment
	TrackingID       string
	TransactionID    string
}

// ConfirmPayment reconciles a returned checkout session with our records.
// It is safe to call any number of times for the same session: the unique
// index on payments.transaction_id is the authoritative guard, the read
// check before it only saves a round trip.
func (e *Engine) ConfirmPayment(ctx context.Context, sessionID string) (*PaymentResult, error) {
	session, err := e.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	txnID := session.PaymentIntent

	var existing models.Payment
	err = e.db.WithContext(ctx).Where("transaction_id = ?", txnID).First(&existing).Error
	if err == nil {
		return &PaymentResult{
			AlreadyProcessed: true,
			Payment:          &existing,
			TrackingID:       existing.TrackingID,
			TransactionID:    txnID,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if session.PaymentStatus != payments.StatusPaid {
		return &PaymentResult{Success: false, TransactionID: txnID}, nil
	}

	parcelID, err := strconv.ParseUint(session.Metadata["parcelId"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s carries no usable parcelId: %w", session.ID, err)
	}

	var result *PaymentResult
	for attempt := 0; attempt < maxTrackingAttempts; attempt++ {
		trackingID, err := tracking.NewID()
		if err != nil {
			return nil, err
		}

		err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var parcel models.Parcel
			if err := tx.First(&parcel, uint(parcelID)).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrParcelNotFound
				}
				return err
			}

			// A parcel is paid at most once. A second session for the same
			// parcel carries a fresh charge id, so it sails past the
			// transaction-id check; it must not reissue the tracking id or
			// drag the delivery status backwards.
			if parcel.PaymentStatus == models.PaymentPaid {
				return ErrParcelAlreadyPaid
			}
			if _, err := statemachine.CanTransition(parcel.DeliveryStatus, models.StatusPendingPickup, "system"); err != nil {
				return err
			}

			parcel.PaymentStatus = models.PaymentPaid
			parcel.DeliveryStatus = models.StatusPendingPickup
			parcel.TrackingID = &trackingID
			if err := tx.Save(&parcel).Error; err != nil {
				return err
			}

			payment := models.Payment{
				Amount:        float64(session.AmountTotal) / 100,
				Currency:      session.Currency,
				CustomerEmail: session.CustomerEmail,
				ParcelID:      parcel.ID,
				ParcelName:    session.Metadata["parcelName"],
				TransactionID: txnID,
				PaymentStatus: session.PaymentStatus,
				PaidAt:        time.Now(),
				TrackingID:    trackingID,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}

			result = &PaymentResult{
				Success:       true,
				Parcel:        &parcel,
				Payment:       &payment,
				TrackingID:    trackingID,
				TransactionID: txnID,
			}
			return nil
		})
		if err == nil {
			break
		}
		if isDuplicateKey(err, "transaction_id") {
			// lost the insert race to a concurrent confirmation of the
			// same charge; the winner's record is the answer
			if ferr := e.db.WithContext(ctx).Where("transaction_id = ?", txnID).First(&existing).Error; ferr == nil {
				return &PaymentResult{
					AlreadyProcessed: true,
					Payment:          &existing,
					TrackingID:       existing.TrackingID,
					TransactionID:    txnID,
				}, nil
			}
			return nil, err
		}
		if isDuplicateKey(err, "tracking_id") {
			result = nil
			continue
		}
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("could not issue a unique tracking id after %d attempts", maxTrackingAttempts)
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, result.Parcel); err != nil {
			logrus.WithError(err).Warn("tracking cache warm failed")
		}
	}
	logrus.WithFields(logrus.Fields{
		"parcel_id":      result.Parcel.ID,
		"transaction_id": txnID,
		"tracking_id":    result.TrackingID,
	}).Info("payment recorded")

	return result, nil
}

// AssignRider moves a parcel to rider_assigned and occupies the rider, in one
// transaction. Rider identity on the parcel comes from the rider record, so
// the three fields are always set together.
func (e *Engine) AssignRider(ctx context.Context, parcelID, riderID uint) (*models.Parcel, *models.Rider, error) {
	var parcel models.Parcel
	if err := e.db.WithContext(ctx).First(&parcel, parcelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrParcelNotFound
		}
		return nil, nil, err
	}

	var rider models.Rider
	if err := e.db.WithContext(ctx).First(&rider, riderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrRiderNotFound
		}
		return nil, nil, err
	}
	if rider.Status != models.RiderApproved || rider.WorkStatus != models.WorkAvailable {
		return nil, nil, ErrRiderUnavailable
	}

	if _, err := statemachine.CanTransition(parcel.DeliveryStatus, models.StatusRiderAssigned, "admin"); err != nil {
		return nil, nil, err
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parcel.DeliveryStatus = models.StatusRiderAssigned
		parcel.RiderID = &rider.ID
		parcel.RiderName = rider.Name
		parcel.RiderEmail = rider.Email
		if err := tx.Save(&parcel).Error; err != nil {
			return err
		}

		// Conditional update so a concurrent assignment of the same rider
		// cannot also win: the loser matches zero rows.
		res := tx.Model(&models.Rider{}).
			Where("id = ? AND status = ? AND work_status = ?", rider.ID, models.RiderApproved, models.WorkAvailable).
			Update("work_status", models.WorkInDelivery)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRiderUnavailable
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	rider.WorkStatus = models.WorkInDelivery

	logrus.WithFields(logrus.Fields{
		"parcel_id": parcel.ID,
		"rider_id":  rider.ID,
	}).Info("rider assigned")

	return &parcel, &rider, nil
}

// UpdateDeliveryStatus applies a delivery-status transition for an actor. The
// rider-workload side effect is declared on the transition edge and applied
// in the same transaction as the parcel update.
func (e *Engine) UpdateDeliveryStatus(ctx context.Context, parcelID uint, to models.DeliveryStatus, actor string) (*models.Parcel, error) {
	if !statemachine.IsKnownStatus(to) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}

	var parcel models.Parcel
	if err := e.db.WithContext(ctx).First(&parcel, parcelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParcelNotFound
		}
		return nil, err
	}

	effect, err := statemachine.CanTransition(parcel.DeliveryStatus, to, actor)
	if err != nil {
		return nil, err
	}
	if effect == statemachine.EffectRiderBusy {
		// occupying a rider needs rider identity, which only AssignRider sets
		return nil, ErrAssignmentRequired
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parcel.DeliveryStatus = to
		if err := tx.Save(&parcel).Error; err != nil {
			return err
		}

		if effect == statemachine.EffectRiderFree {
			if parcel.RiderID == nil {
				return ErrRiderNotFound
			}
			var rider models.Rider
			if err := tx.First(&rider, *parcel.RiderID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRiderNotFound
				}
				return err
			}
			rider.WorkStatus = models.WorkAvailable
			return tx.Save(&rider).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"parcel_id": parcel.ID,
		"status":    to,
	}).Info("delivery status updated")

	return &parcel, nil
}

// DeleteParcel hard-deletes a parcel regardless of its current status
func (e *Engine) DeleteParcel(ctx context.Context, parcelID uint) error {
	res := e.db.WithContext(ctx).Delete(&models.Parcel{}, parcelID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrParcelNotFound
	}
	return nil
}

// ParcelByTrackingID resolves a tracking id to its parcel, consulting the
// cache first when one is configured.
func (e *Engine) ParcelByTrackingID(ctx context.Context, trackingID string) (*models.Parcel, error) {
	if e.cache != nil {
		if parcel, err := e.cache.Get(ctx, trackingID); err != nil {
			logrus.WithError(err).Warn("tracking cache lookup failed")
		} else if parcel != nil {
			return parcel, nil
		}
	}

	var parcel models.Parcel
	if err := e.db.WithContext(ctx).Where("tracking_id = ?", trackingID).First(&parcel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParcelNotFound
		}
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, &parcel); err != nil {
			logrus.WithError(err).Warn("tracking cache warm failed")
		}
	}
	return &parcel, nil
}

// isDuplicateKey reports whether err is a unique-constraint violation on the
// named column, across the sqlite and postgres drivers.
func isDuplicateKey(err error, column string) bool {
	if err == nil {
		return false
	}
	if !strings.Contains(err.Error(), column) {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
