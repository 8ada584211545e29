package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
)

type PaymentRequestService struct {
	repo     domain.PaymentRequestRepository
	engine   *ReconciliationEngine
	audit    application.AuditLog
	currency string
	logger   *slog.Logger
}

func NewPaymentRequestService(
	repo domain.PaymentRequestRepository,
	engine *ReconciliationEngine,
	audit application.AuditLog,
	defaultCurrency string,
	logger *slog.Logger,
) *PaymentRequestService {
	if defaultCurrency == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	return &PaymentRequestService{
		repo:     repo,
		engine:   engine,
		audit:    audit,
		currency: strings.ToUpper(defaultCurrency),
		logger:   logger,
	}
}

type CreatePaymentRequestCommand struct {
	Reference      string
	UserID         string
	OrganizationID string
	AmountCents    int64
	Currency       string
}

// Create stores a new CREATED request. A reused reference is a DUPLICATE_REFERENCE error.
func (s *PaymentRequestService) Create(ctx context.Context, cmd CreatePaymentRequestCommand) (*domain.PaymentRequest, error) {
	pr, err := s.create(ctx, cmd, domain.SourceFrontend)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateReference) {
			return nil, application.NewDuplicateReferenceError(err)
		}
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			return nil, application.NewValidationError(err)
		}
		return nil, application.NewInternalError(err)
	}
	return pr, nil
}

func (s *PaymentRequestService) create(ctx context.Context, cmd CreatePaymentRequestCommand, source domain.Source) (*domain.PaymentRequest, error) {
	currency := cmd.Currency
	if currency == "" {
		currency = s.currency
	}
	money, err := domain.NewMoney(cmd.AmountCents, currency)
	if err != nil {
		return nil, domain.NewInvalidAmountError(cmd.AmountCents)
	}

	pr, err := domain.NewPaymentRequest(cmd.Reference, cmd.UserID, cmd.OrganizationID, money)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, pr); err != nil {
		return nil, err
	}

	s.logger.Info("payment request created",
		"reference", pr.Reference,
		"organization_id", pr.OrganizationID,
		"user_id", pr.UserID,
		"source", source)
	s.audit.Write(ctx, application.AuditEntry{
		Level:          application.AuditInfo,
		Message:        "payment request created",
		Source:         source,
		Reference:      pr.Reference,
		OrganizationID: pr.OrganizationID,
		UserID:         pr.UserID,
		Status:         pr.Status,
		AmountCents:    &pr.AmountCents,
		Currency:       pr.Currency,
	})
	return pr, nil
}

// UpsertFromReference creates a CREATED request for a gateway reference that
// follows the membership naming convention. It reports whether a request now exists.
func (s *PaymentRequestService) UpsertFromReference(ctx context.Context, reference string, amount domain.Money, source domain.Source) (bool, error) {
	corr, ok := domain.ParseReference(reference)
	if !ok {
		s.logger.Warn("reference does not follow the membership convention, cannot upsert",
			"reference", reference,
			"source", source)
		s.audit.Write(ctx, application.AuditEntry{
			Level:     application.AuditWarn,
			Message:   "upsert: reference not parseable",
			Source:    source,
			Reference: reference,
		})
		return false, nil
	}

	_, err := s.create(ctx, CreatePaymentRequestCommand{
		Reference:      reference,
		UserID:         corr.UserID,
		OrganizationID: corr.OrganizationID,
		AmountCents:    amount.Amount,
		Currency:       amount.Currency,
	}, source)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrDuplicateReference):
		s.logger.Info("concurrent upsert, request already exists", "reference", reference, "source", source)
		return true, nil
	default:
		return false, err
	}
}

func (s *PaymentRequestService) GetByReference(ctx context.Context, reference string) (*domain.PaymentRequest, error) {
	pr, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return pr, nil
}

func (s *PaymentRequestService) GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentRequest, error) {
	pr, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return pr, nil
}

// LinkTransaction attaches a transaction id from the checkout redirect.
func (s *PaymentRequestService) LinkTransaction(ctx context.Context, reference, transactionID string) (*domain.PaymentRequest, error) {
	if reference == "" || transactionID == "" {
		return nil, application.NewValidationError(domain.NewMissingRequiredFieldError("reference and transactionId"))
	}
	pr, err := s.engine.LinkTransaction(ctx, reference, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionIDConflict) {
			return nil, application.NewDuplicateReferenceError(err)
		}
		return nil, mapLookupError(err)
	}
	return pr, nil
}

func mapLookupError(err error) error {
	if errors.Is(err, domain.ErrPaymentRequestNotFound) {
		return application.NewNotFoundError(err)
	}
	return application.NewInternalError(err)
}
