// Package composer implements the order composition session: the
// mutable draft (customer selection + cart), its validation state, and
// the submission orchestration against the backend.
package composer

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/order-composer/internal/backend"
	"github.com/xenking/order-composer/internal/domain/cart"
	"github.com/xenking/order-composer/internal/domain/catalog"
	"github.com/xenking/order-composer/internal/form"
	"github.com/xenking/order-composer/pkg/notify"
)

// State is the submission-orchestration state of the session.
type State string

const (
	// StateComposing accepts draft mutations and submission requests.
	StateComposing State = "composing"
	// StateSubmitting means a submission is in flight; further submit
	// calls are rejected until it resolves.
	StateSubmitting State = "submitting"
)

var (
	// ErrSubmitInFlight is returned when Submit is called while a prior
	// submission has not resolved. The second call performs no network
	// activity.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrDraftInvalid is returned when local validation rejects the
	// draft before any network call. Field details are in FieldErrors.
	ErrDraftInvalid = errors.New("draft failed validation")
)

// OrderService is the backend surface the session needs.
type OrderService interface {
	CreateOrder(ctx context.Context, customerID string, items []backend.SubmitItem) (*backend.Order, error)
	GetOrder(ctx context.Context, id string) (*backend.Order, error)
}

// Session owns the draft for one order-composition screen. It is
// created when the screen opens and fully discarded when the user
// navigates away, so a prior order's items can never leak into a new
// composition.
type Session struct {
	orders   OrderService
	notices  *notify.Sink
	validate *validatorv10.Validate
	lg       *zap.Logger

	mu        sync.Mutex
	state     State
	customer  catalog.Candidate
	cart      *cart.Cart
	fieldErrs form.Errors
}

// NewSession creates an idle composing session.
func NewSession(orders OrderService, notices *notify.Sink, lg *zap.Logger) *Session {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Session{
		orders:    orders,
		notices:   notices,
		validate:  form.NewValidator(),
		lg:        lg,
		state:     StateComposing,
		cart:      cart.New(lg),
		fieldErrs: make(form.Errors),
	}
}

// Cart exposes the session's cart aggregate.
func (s *Session) Cart() *cart.Cart {
	return s.cart
}

// State returns the current orchestration state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectCustomer copies the picked candidate into the draft and clears
// any stale customer field error.
func (s *Session) SelectCustomer(c catalog.Candidate) {
	s.mu.Lock()
	s.customer = c
	delete(s.fieldErrs, form.PathCustomerID)
	s.mu.Unlock()
}

// Customer returns the current customer selection.
func (s *Session) Customer() catalog.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customer
}

// AddItem validates and appends a line item built from the selected
// product. Validation failures are returned to the caller, which maps
// them onto the item form.
func (s *Session) AddItem(product catalog.Candidate, quantity int, discount decimal.Decimal) error {
	item, err := cart.NewLineItem(product, quantity, discount)
	if err != nil {
		return err
	}
	s.cart.Add(item)
	return nil
}

// RemoveItem deletes the item at the given cart position. Out-of-range
// indices are ignored by the cart.
func (s *Session) RemoveItem(index int) {
	s.cart.Remove(index)
}

// FieldErrors returns a copy of the current validation error set.
func (s *Session) FieldErrors() form.Errors {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(form.Errors, len(s.fieldErrs))
	for k, v := range s.fieldErrs {
		out[k] = v
	}
	return out
}

// Discard fully resets the session: customer, cart, and errors. Called
// when the user navigates away or explicitly abandons the draft.
func (s *Session) Discard() {
	s.mu.Lock()
	s.customer = catalog.Candidate{}
	s.fieldErrs = make(form.Errors)
	s.state = StateComposing
	s.mu.Unlock()
	s.cart.ReplaceAll(nil)
}

// Submit validates the draft, performs exactly one network submission,
// and reconciles the outcome back into session state:
//
//   - local validation failure: field errors + a non-field notice, no
//     network call;
//   - server field rejection: mapped onto form paths, draft untouched;
//   - transport failure: generic error notice, draft untouched;
//   - success: cart and selection cleared, success notice, the
//     confirmed order returned as the completion signal. Navigation is
//     the caller's concern.
func (s *Session) Submit(ctx context.Context) (*backend.Order, error) {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		s.lg.Debug("ignoring duplicate submit")
		return nil, ErrSubmitInFlight
	}
	customer := s.customer
	items := s.cart.Items()

	draft := form.Draft{CustomerID: customer.ID, Items: draftItems(items)}
	if verrs := form.Validate(s.validate, draft); !verrs.Empty() {
		s.fieldErrs = verrs
		s.mu.Unlock()
		// An empty cart has no field to attach its error to, so it is
		// also surfaced as a banner.
		if msg, ok := verrs.Get(form.PathItems); ok && s.notices != nil {
			s.notices.Open(notify.StatusError, msg)
		}
		return nil, ErrDraftInvalid
	}

	s.state = StateSubmitting
	s.fieldErrs = make(form.Errors)
	s.mu.Unlock()

	order, err := s.orders.CreateOrder(ctx, customer.ID, submitItems(items))
	if err != nil {
		s.settleFailure(err)
		return nil, err
	}

	s.mu.Lock()
	s.state = StateComposing
	s.customer = catalog.Candidate{}
	s.fieldErrs = make(form.Errors)
	s.mu.Unlock()
	s.cart.ReplaceAll(nil)

	if s.notices != nil {
		s.notices.Open(notify.StatusSuccess, "order created")
	}
	return order, nil
}

// settleFailure maps a submission error back into composition state.
// The draft is left exactly as the user composed it: no field is
// cleared by a failed submission.
func (s *Session) settleFailure(err error) {
	s.mu.Lock()
	s.state = StateComposing
	s.mu.Unlock()

	var rej *backend.RejectionError
	if errors.As(err, &rej) && len(rej.Fields) > 0 {
		mapped, unknown := form.FromServer(rej.Fields)
		s.mu.Lock()
		s.fieldErrs = mapped
		s.mu.Unlock()
		if len(unknown) > 0 {
			s.lg.Warn("unmapped server field rejections", zap.Strings("fields", unknown))
			if s.notices != nil {
				s.notices.Open(notify.StatusError, rej.Message)
			}
		}
		return
	}

	s.lg.Warn("order submission failed", zap.Error(err))
	if s.notices != nil {
		s.notices.Open(notify.StatusError, "order could not be submitted, please retry")
	}
}

// LoadOrder fetches a confirmed order for the view screen and replaces
// the cart with its item snapshots. The caller resets the cart again on
// leaving the view.
func (s *Session) LoadOrder(ctx context.Context, id string) (*backend.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if s.notices != nil {
			s.notices.Open(notify.StatusError, "order could not be loaded")
		}
		return nil, err
	}

	items := make([]cart.LineItem, len(order.Items))
	for i, it := range order.Items {
		items[i] = cart.LineItem{
			Product: catalog.Candidate{
				ID:       it.ProductID,
				Label:    it.Label,
				Price:    it.UnitPrice,
				HasPrice: true,
			},
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Discount:  it.Discount,
			Total:     it.Total,
		}
	}
	s.cart.ReplaceAll(items)
	return order, nil
}

func draftItems(items []cart.LineItem) []form.DraftItem {
	out := make([]form.DraftItem, len(items))
	for i, item := range items {
		out[i] = form.DraftItem{
			ProductID: item.Product.ID,
			Quantity:  item.Quantity,
			Discount:  item.Discount,
		}
	}
	return out
}

func submitItems(items []cart.LineItem) []backend.SubmitItem {
	out := make([]backend.SubmitItem, len(items))
	for i, item := range items {
		out[i] = backend.SubmitItem{
			ProductID: item.Product.ID,
			Quantity:  item.Quantity,
			Discount:  item.Discount,
			UnitPrice: item.UnitPrice,
		}
	}
	return out
}
