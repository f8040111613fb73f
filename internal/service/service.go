// Package service holds the marketplace rules: cart aggregation, the order
// lifecycle, reporting views, complaints, reviews and identity. Handlers
// translate HTTP into these calls and nothing else.
package service

import (
	"context"
	"errors"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/apperr"
	"marketplace/internal/keylock"
	"marketplace/internal/models"
	"marketplace/internal/store"
)

// Notifier delivers a message out of band. Implementations must not block
// the caller and must swallow their own failures.
type Notifier interface {
	Notify(to, subject, body string)
}

// Recorder receives lifecycle events for metrics.
type Recorder interface {
	OrderTransition(to models.OrderStatus)
	PaymentRejected(reason string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, string) {}

type nopRecorder struct{}

func (nopRecorder) OrderTransition(models.OrderStatus) {}
func (nopRecorder) PaymentRejected(string)             {}

// AuthConfig controls token issuance.
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type Service struct {
	store    store.Store
	locks    *keylock.Locker
	notifier Notifier
	recorder Recorder
	auth     AuthConfig
	now      func() time.Time
	validate *validator.Validate
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }
func WithAuth(cfg AuthConfig) Option { return func(s *Service) { s.auth = cfg } }
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		locks:    keylock.New(),
		notifier: nopNotifier{},
		recorder: nopRecorder{},
		auth: AuthConfig{
			AccessTokenTTL:  20 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		now:      time.Now,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return lowerCamel(fld.Name)
		}
		return name
	})
	return v
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// check validates v and reports every failing field at once.
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperr.Internal(err)
	}
	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		fields[fe.Field()] = describe(fe)
	}
	return apperr.Validation(fields)
}

func describe(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if isString {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if isString {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "email":
		return "must be a valid email"
	case "latitude", "longitude":
		return "must be a valid " + fe.Tag()
	default:
		return "is invalid"
	}
}

// parseID turns a hex id into an ObjectID, reporting field on failure.
func parseID(field, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation(map[string]string{field: "is not a valid id"})
	}
	return id, nil
}

// notFound converts store.ErrNotFound into a not-found error for what.
func notFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	return err
}

func productKey(id primitive.ObjectID) string { return "product:" + id.Hex() }
func orderKey(id primitive.ObjectID) string   { return "order:" + id.Hex() }
func userKey(id primitive.ObjectID) string    { return "user:" + id.Hex() }

func (s *Service) notifyUser(userID primitive.ObjectID, subject, body string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[NOTIFY] [ERROR] panic recovered: %v", r)
			}
		}()
		ctx, cancel := backgroundTimeout()
		defer cancel()
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			log.Printf("[NOTIFY] [ERROR] recipient %s lookup failed: %v", userID.Hex(), err)
			return
		}
		s.notifier.Notify(user.Email, subject, body)
	}()
}

func backgroundTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   primitive.ObjectID
	Role string
}
