package lifecycle

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"testing"

	"zap-shift-api/config"
	"zap-shift-api/models"
	"zap-shift-api/payments"
	"zap-shift-api/statemachine"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeGateway implements payments.CheckoutGateway for tests
type fakeGateway struct {
	CreateFunc   func(ctx context.Context, params payments.CreateSessionParams) (*payments.Session, error)
	RetrieveFunc func(ctx context.Context, sessionID string) (*payments.Session, error)
}

func (f *fakeGateway) CreateSession(ctx context.Context, params payments.CreateSessionParams) (*payments.Session, error) {
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, params)
	}
	return nil, errors.New("CreateSession not stubbed")
}

func (f *fakeGateway) RetrieveSession(ctx context.Context, sessionID string) (*payments.Session, error) {
	if f.RetrieveFunc != nil {
		return f.RetrieveFunc(ctx, sessionID)
	}
	return nil, errors.New("RetrieveSession not stubbed")
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func paidSession(parcelID uint, intent string, amountMinor int64) *payments.Session {
	return &payments.Session{
		ID:            "cs_test_" + intent,
		PaymentStatus: payments.StatusPaid,
		PaymentIntent: intent,
		AmountTotal:   amountMinor,
		Currency:      "usd",
		CustomerEmail: "a@x.com",
		Metadata: map[string]string{
			"parcelId":   strconv.FormatUint(uint64(parcelID), 10),
			"parcelName": "Books",
		},
	}
}

func mustCreateParcel(t *testing.T, e *Engine, cost float64) *models.Parcel {
	t.Helper()
	parcel := &models.Parcel{Name: "Books", SenderEmail: "a@x.com", Cost: cost}
	if err := e.CreateParcel(context.Background(), parcel); err != nil {
		t.Fatal(err)
	}
	return parcel
}

var trackingFormat = regexp.MustCompile(`^TRK-\d+-[0-9A-F]{8}$`)

func TestCreateParcelRejectsNonPositiveCost(t *testing.T) {
	e := New(newTestDB(t), &fakeGateway{}, nil, "")
	for _, cost := range []float64{0, -5} {
		err := e.CreateParcel(context.Background(), &models.Parcel{Name: "Books", SenderEmail: "a@x.com", Cost: cost})
		if !errors.Is(err, ErrInvalidCost) {
			t.Fatalf("cost %v: expected ErrInvalidCost, got %v", cost, err)
		}
	}
}

func TestCreateParcelDefaults(t *testing.T) {
	db := newTestDB(t)
	e := New(db, &fakeGateway{}, nil, "")
	parcel := mustCreateParcel(t, e, 20)

	if parcel.PaymentStatus != models.PaymentUnpaid {
		t.Fatalf("expected unpaid, got %s", parcel.PaymentStatus)
	}
	if parcel.DeliveryStatus != models.StatusPending {
		t.Fatalf("expected pending, got %s", parcel.DeliveryStatus)
	}
	if parcel.TrackingID != nil {
		t.Fatal("tracking id must be absent until paid")
	}
}

func TestCreateCheckoutSessionConvertsToMinorUnits(t *testing.T) {
	var got payments.CreateSessionParams
	gateway := &fakeGateway{
		CreateFunc: func(ctx context.Context, params payments.CreateSessionParams) (*payments.Session, error) {
			got = params
			return &payments.Session{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
		},
	}
	e := New(newTestDB(t), gateway, nil, "https://zapshift.example")

	url, err := e.CreateCheckoutSession(context.Background(), CheckoutParams{
		ParcelID:    7,
		Cost:        20,
		ParcelName:  "Books",
		SenderEmail: "a@x.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://checkout.example/cs_1" {
		t.Fatalf("unexpected redirect url %q", url)
	}
	if got.AmountMinor != 2000 {
		t.Fatalf("expected 2000 minor units, got %d", got.AmountMinor)
	}
	if got.Metadata["parcelId"] != "7" || got.Metadata["parcelName"] != "Books" {
		t.Fatalf("metadata not carried: %v", got.Metadata)
	}
	if got.CustomerEmail != "a@x.com" {
		t.Fatalf("receipt email not carried: %q", got.CustomerEmail)
	}
}

func TestConfirmPaymentSuccess(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	e := New(db, gateway, nil, "")

	parcel := mustCreateParcel(t, e, 20)
	gateway.RetrieveFunc = func(ctx context.Context, sessionID string) (*payments.Session, error) {
		return paidSession(parcel.ID, "pi_1", 2000), nil
	}

	result, err := e.ConfirmPayment(context.Background(), "cs_test_pi_1")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.AlreadyProcessed {
		t.Fatalf("unexpected result %+v", result)
	}
	if !trackingFormat.MatchString(result.TrackingID) {
		t.Fatalf("tracking id %q has wrong format", result.TrackingID)
	}
	if result.TransactionID != "pi_1" {
		t.Fatalf("expected transaction pi_1, got %q", result.TransactionID)
	}

	var stored models.Parcel
	if err := db.First(&stored, parcel.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.PaymentStatus != models.PaymentPaid {
		t.Fatalf("expected paid, got %s", stored.PaymentStatus)
	}
	if stored.DeliveryStatus != models.StatusPendingPickup {
		t.Fatalf("expected pending-pickup, got %s", stored.DeliveryStatus)
	}
	if stored.TrackingID == nil || *stored.TrackingID != result.TrackingID {
		t.Fatal("parcel tracking id must match the issued one")
	}

	var payment models.Payment
	if err := db.Where("transaction_id = ?", "pi_1").First(&payment).Error; err != nil {
		t.Fatal(err)
	}
	if payment.Amount != 20 {
		t.Fatalf("expected amount 20, got %v", payment.Amount)
	}
	if payment.TrackingID != *stored.TrackingID {
		t.Fatal("payment and parcel tracking ids must match")
	}
	if payment.CustomerEmail != "a@x.com" || payment.ParcelID != parcel.ID {
		t.Fatalf("payment record incomplete: %+v", payment)
	}
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	e := New(db, gateway, nil, "")

	parcel := mustCreateParcel(t, e, 20)
	gateway.RetrieveFunc = func(ctx context.Context, sessionID string) (*payments.Session, error) {
		return paidSession(parcel.ID, "pi_1", 2000), nil
	}

	first, err := e.ConfirmPayment(context.Background(), "cs_test_pi_1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.ConfirmPayment(context.Background(), "cs_test_pi_1")
	if err != nil {
		t.Fatal(err)
	}

	if !second.AlreadyProcessed {
		t.Fatal("second confirmation must report already processed")
	}
	if second.Payment.TransactionID != first.Payment.TransactionID {
		t.Fatal("second confirmation must return the first payment record")
	}
	if second.TrackingID != first.TrackingID {
		t.Fatal("tracking id must not change on replay")
	}

	var count int64
	db.Model(&models.Payment{}).Where("transaction_id = ?", "pi_1").Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one payment record, got %d", count)
	}
}

func TestConfirmPaymentSecondSessionLeavesParcelUntouched(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	e := New(db, gateway, nil, "")

	parcel := mustCreateParcel(t, e, 20)
	gateway.RetrieveFunc = func(ctx context.Context, sessionID string) (*payments.Session, error) {
		return paidSession(parcel.ID, "pi_A", 2000), nil
	}
	first, err := e.ConfirmPayment(context.Background(), "cs_test_pi_A")
	if err != nil {
		t.Fatal(err)
	}

	// A second checkout session for the same parcel carries a distinct
	// charge id, so it is not caught by the transaction-id check
	gateway.RetrieveFunc = func(ctx context.Context, sessionID string) (*payments.Session, error) {
		return paidSession(parcel.ID, "pi_B", 2000), nil
	}
	_, err = e.ConfirmPayment(context.Background(), "cs_test_pi_B")
	if !errors.Is(err, ErrParcelAlreadyPaid) {
		t.Fatalf("expected ErrParcelAlreadyPaid, got %v", err)
	}

	var stored models.Parcel
	db.First(&stored, parcel.ID)
	if stored.TrackingID == nil || *stored.TrackingID != first.TrackingID {
		t.Fatal("tracking id must never be reassigned")
	}
	if stored.DeliveryStatus != models.StatusPendingPickup {
		t.Fatalf("delivery status must be untouched, got %s", stored.DeliveryStatus)
	}

	var count int64
	db.Model(&models.Payment{}).Where("parcel_id = ?", parcel.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one payment for the parcel, got %d", count)
	}
}

func TestConfirmPaymentAfterAssignmentKeepsStatus(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	e := New(db, gateway, nil, "")

	parcel := mustCreateParcel(t, e, 20)
	gateway.RetrieveFunc = func(ctx context.Context, sessionID string) (*payments.Session, error) {
		return paidSession(parcel.ID, "pi_A", 2000), nil
	}
	if _, err := e.ConfirmPayment(context.Background(), "cs_test_pi_A"); err != nil {
		t.Fatal(err)
	}
	rider := seedRider(t, db, models.RiderApproved, models.WorkAvailable)
	if _, _, err := e.AssignRider(context.Background(), parcel.ID, rider.ID); err != nil {
		t.Fatal(err)
	}

	gateway.RetrieveFunc = func(ctx context.Context, sessionID string) (*payments.Session, error) {
		return paidSession(parcel.ID, "pi_B", 2000), nil
	}
	if _, err := e.ConfirmPayment(context.Background(), "cs_test_pi_B"); !errors.Is(err, ErrParcelAlreadyPaid) {
		t.Fatalf("expected ErrParcelAlreadyPaid, got %v", err)
	}

	var stored models.Parcel
	db.First(&stored, parcel.ID)
	if stored.DeliveryStatus != models.StatusRiderAssigned {
		t.Fatalf("confirmation must not drag an assigned parcel back, got %s", stored.DeliveryStatus)
	}
}

func TestConfirmPaymentUnpaidSessionMutatesNothing(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	e := New(db, gateway, nil, "")

	parcel := mustCreateParcel(t, e, 20)
	gateway.RetrieveFunc = func(ctx context.Context, sessionID string) (*payments.Session, error) {
		session := paidSession(parcel.ID, "pi_2", 2000)
		session.PaymentStatus = "unpaid"
		return session, nil
	}

	result, err := e.ConfirmPayment(context.Background(), "cs_test_pi_2")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || result.AlreadyProcessed {
		t.Fatalf("unpaid session must yield a plain failure, got %+v", result)
	}

	var stored models.Parcel
	db.First(&stored, parcel.ID)
	if stored.PaymentStatus != models.PaymentUnpaid || stored.TrackingID != nil {
		t.Fatal("unpaid session must not mutate the parcel")
	}

	var count int64
	db.Model(&models.Payment{}).Count(&count)
	if count != 0 {
		t.Fatalf("unpaid session must not record a payment, got %d", count)
	}
}

func TestConfirmPaymentMissingParcel(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{
		RetrieveFunc: func(ctx context.Context, sessionID string) (*payments.Session, error) {
			return paidSession(9999, "pi_3", 2000), nil
		},
	}
	e := New(db, gateway, nil, "")

	_, err := e.ConfirmPayment(context.Background(), "cs_test_pi_3")
	if !errors.Is(err, ErrParcelNotFound) {
		t.Fatalf("expected ErrParcelNotFound, got %v", err)
	}

	var count int64
	db.Model(&models.Payment{}).Count(&count)
	if count != 0 {
		t.Fatal("no payment may be recorded when the parcel is missing")
	}
}

func TestConfirmPaymentGatewayFailure(t *testing.T) {
	gateway := &fakeGateway{
		RetrieveFunc: func(ctx context.Context, sessionID string) (*payments.Session, error) {
			return nil, &payments.GatewayError{Op: "retrieve session", StatusCode: 500, Body: "boom"}
		},
	}
	e := New(newTestDB(t), gateway, nil, "")

	_, err := e.ConfirmPayment(context.Background(), "cs_down")
	var gwErr *payments.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected gateway error to propagate, got %v", err)
	}
}

func seedPaidParcel(t *testing.T, db *gorm.DB, e *Engine) *models.Parcel {
	t.Helper()
	parcel := mustCreateParcel(t, e, 20)
	trackingID := "TRK-1-AAAA" + strconv.FormatUint(uint64(parcel.ID), 16)
	err := db.Model(parcel).Updates(map[string]interface{}{
		"payment_status":  models.PaymentPaid,
		"delivery_status": models.StatusPendingPickup,
		"tracking_id":     trackingID,
	}).Error
	if err != nil {
		t.Fatal(err)
	}
	parcel.DeliveryStatus = models.StatusPendingPickup
	return parcel
}

func seedRider(t *testing.T, db *gorm.DB, status models.RiderStatus, work models.WorkStatus) *models.Rider {
	t.Helper()
	rider := &models.Rider{
		Name:       "Karim",
		Email:      "karim@x.com",
		District:   "Dhaka",
		Status:     status,
		WorkStatus: work,
	}
	if err := db.Create(rider).Error; err != nil {
		t.Fatal(err)
	}
	return rider
}

func TestAssignRider(t *testing.T) {
	db := newTestDB(t)
	e := New(db, &fakeGateway{}, nil, "")

	parcel := seedPaidParcel(t, db, e)
	rider := seedRider(t, db, models.RiderApproved, models.WorkAvailable)

	gotParcel, gotRider, err := e.AssignRider(context.Background(), parcel.ID, rider.ID)
	if err != nil {
		t.Fatal(err)
	}

	if gotParcel.DeliveryStatus != models.StatusRiderAssigned {
		t.Fatalf("expected rider_assigned, got %s", gotParcel.DeliveryStatus)
	}
	if gotParcel.RiderID == nil || *gotParcel.RiderID != rider.ID ||
		gotParcel.RiderName != rider.Name || gotParcel.RiderEmail != rider.Email {
		t.Fatalf("rider identity fields must all be set together: %+v", gotParcel)
	}
	if gotRider.WorkStatus != models.WorkInDelivery {
		t.Fatalf("expected in_delivery, got %s", gotRider.WorkStatus)
	}

	var storedRider models.Rider
	db.First(&storedRider, rider.ID)
	if storedRider.WorkStatus != models.WorkInDelivery {
		t.Fatal("rider workload not persisted")
	}
}

func TestAssignRiderMissingRider(t *testing.T) {
	db := newTestDB(t)
	e := New(db, &fakeGateway{}, nil, "")
	parcel := seedPaidParcel(t, db, e)

	_, _, err := e.AssignRider(context.Background(), parcel.ID, 9999)
	if !errors.Is(err, ErrRiderNotFound) {
		t.Fatalf("expected ErrRiderNotFound, got %v", err)
	}

	var stored models.Parcel
	db.First(&stored, parcel.ID)
	if stored.RiderID != nil || stored.RiderName != "" || stored.RiderEmail != "" {
		t.Fatal("failed assignment must not partially set rider fields")
	}
}

func TestAssignRiderBusyRider(t *testing.T) {
	db := newTestDB(t)
	e := New(db, &fakeGateway{}, nil, "")
	parcel := seedPaidParcel(t, db, e)
	rider := seedRider(t, db, models.RiderApproved, models.WorkInDelivery)

	_, _, err := e.AssignRider(context.Background(), parcel.ID, rider.ID)
	if !errors.Is(err, ErrRiderUnavailable) {
		t.Fatalf("expected ErrRiderUnavailable, got %v", err)
	}
}

func TestAssignRiderCannotDoubleBook(t *testing.T) {
	db := newTestDB(t)
	e := New(db, &fakeGateway{}, nil, "")
	first := seedPaidParcel(t, db, e)
	second := seedPaidParcel(t, db, e)
	rider := seedRider(t, db, models.RiderApproved, models.WorkAvailable)

	if _, _, err := e.AssignRider(context.Background(), first.ID, rider.ID); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.AssignRider(context.Background(), second.ID, rider.ID); !errors.Is(err, ErrRiderUnavailable) {
		t.Fatalf("expected ErrRiderUnavailable, got %v", err)
	}

	var stored models.Parcel
	db.First(&stored, second.ID)
	if stored.RiderID != nil || stored.DeliveryStatus != models.StatusPendingPickup {
		t.Fatalf("losing assignment must not stick: %+v", stored)
	}
}

func TestAssignRiderUnpaidParcel(t *testing.T) {
	db := newTestDB(t)
	e := New(db, &fakeGateway{}, nil, "")
	parcel := mustCreateParcel(t, e, 20) // still pending
	rider := seedRider(t, db, models.RiderApproved, models.WorkAvailable)

	_, _, err := e.AssignRider(context.Background(), parcel.ID, rider.ID)
	var invalid *statemachine.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestDeliveryCompletionFreesRider(t *testing.T) {
	db := newTestDB(t)
	e := New(db, &fakeGateway{}, nil, "")
	parcel := seedPaidParcel(t, db, e)
	rider := seedRider(t, db, models.RiderApproved, models.WorkAvailable)

	if _, _, err := e.AssignRider(context.Background(), parcel.ID, rider.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.UpdateDeliveryStatus(context.Background(), parcel.ID, models.StatusRiderArriving, "rider"); err != nil {
		t.Fatal(err)
	}
	updated, err := e.UpdateDeliveryStatus(context.Background(), parcel.ID, models.StatusDelivered, "rider")
	if err != nil {
		t.Fatal(err)
	}
	if updated.DeliveryStatus != models.StatusDelivered {
		t.Fatalf("expected parcel_delivered, got %s", updated.DeliveryStatus)
	}

	var storedRider models.Rider
	db.First(&storedRider, rider.ID)
	if storedRider.WorkStatus != models.WorkAvailable {
		t.Fatalf("delivery completion must free the rider, got %s", storedRider.WorkStatus)
	}
}

func TestUpdateDeliveryStatusRejectsIllegalTransition(t *testing.T) {
	db := newTestDB(t)
	e := New(db, &fakeGateway{}, nil, "")
	parcel := mustCreateParcel(t, e, 20) // pending

	_, err := e.UpdateDeliveryStatus(context.Background(), parcel.ID, models.StatusDelivered, "rider")
	var invalid *statemachine.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	var stored models.Parcel
	db.First(&stored, parcel.ID)
	if stored.DeliveryStatus != models.StatusPending {
		t.Fatal("rejected transition must not mutate the parcel")
	}
}

func TestUpdateDeliveryStatusUnknownStatus(t *testing.T) {
	db := newTestDB(t)
	e := New(db, &fakeGateway{}, nil, "")
	parcel := mustCreateParcel(t, e, 20)

	_, err := e.UpdateDeliveryStatus(context.Background(), parcel.ID, "teleported", "rider")
	if !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestUpdateDeliveryStatusCannotAssign(t *testing.T) {
	db := newTestDB(t)
	e := New(db, &fakeGateway{}, nil, "")
	parcel := seedPaidParcel(t, db, e)

	_, err := e.UpdateDeliveryStatus(context.Background(), parcel.ID, models.StatusRiderAssigned, "admin")
	if !errors.Is(err, ErrAssignmentRequired) {
		t.Fatalf("expected ErrAssignmentRequired, got %v", err)
	}
}

func TestDeleteParcel(t *testing.T) {
	db := newTestDB(t)
	e := New(db, &fakeGateway{}, nil, "")
	parcel := mustCreateParcel(t, e, 20)

	if err := e.DeleteParcel(context.Background(), parcel.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteParcel(context.Background(), parcel.ID); !errors.Is(err, ErrParcelNotFound) {
		t.Fatalf("expected ErrParcelNotFound on second delete, got %v", err)
	}
}

func TestParcelByTrackingID(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	e := New(db, gateway, nil, "")

	parcel := mustCreateParcel(t, e, 20)
	gateway.RetrieveFunc = func(ctx context.Context, sessionID string) (*payments.Session, error) {
		return paidSession(parcel.ID, "pi_4", 2000), nil
	}
	result, err := e.ConfirmPayment(context.Background(), "cs_test_pi_4")
	if err != nil {
		t.Fatal(err)
	}

	found, err := e.ParcelByTrackingID(context.Background(), result.TrackingID)
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != parcel.ID {
		t.Fatalf("expected parcel %d, got %d", parcel.ID, found.ID)
	}

	if _, err := e.ParcelByTrackingID(context.Background(), "TRK-0-DEADBEEF"); !errors.Is(err, ErrParcelNotFound) {
		t.Fatalf("expected ErrParcelNotFound, got %v", err)
	}
}
