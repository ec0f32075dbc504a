// Package gateway exposes the composition engine to the rendering
// layer over HTTP. It is deliberately thin: every handler reads or
// calls the core and encodes state; no business rule lives here.
package gateway

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/order-composer/internal/backend"
	"github.com/xenking/order-composer/internal/composer"
	"github.com/xenking/order-composer/internal/domain/cart"
	"github.com/xenking/order-composer/internal/domain/catalog"
	"github.com/xenking/order-composer/internal/form"
	"github.com/xenking/order-composer/pkg/dialog"
	"github.com/xenking/order-composer/pkg/notify"
)

// Searcher is the lookup surface the gateway consumes.
type Searcher interface {
	Search(ctx context.Context, kind catalog.Kind, query string) []catalog.Candidate
	Reset()
}

// Handlers wires the session, lookup adapter, confirmation gate and
// notification sink into HTTP endpoints.
type Handlers struct {
	session *composer.Session
	lookup  Searcher
	gate    *dialog.Gate
	notices *notify.Sink
	lg      *zap.Logger
}

// NewHandlers constructs the gateway handlers.
func NewHandlers(
	session *composer.Session,
	lk Searcher,
	gate *dialog.Gate,
	notices *notify.Sink,
	lg *zap.Logger,
) *Handlers {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Handlers{
		session: session,
		lookup:  lk,
		gate:    gate,
		notices: notices,
		lg:      lg,
	}
}

// Register mounts all gateway routes on the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/session", h.getSession)
	mux.HandleFunc("DELETE /api/session", h.discardSession)
	mux.HandleFunc("PUT /api/session/customer", h.selectCustomer)
	mux.HandleFunc("POST /api/session/items", h.addItem)
	mux.HandleFunc("DELETE /api/session/items/{index}", h.removeItem)
	mux.HandleFunc("POST /api/session/submit", h.submit)
	mux.HandleFunc("GET /api/search", h.search)
	mux.HandleFunc("GET /api/dialog", h.getDialog)
	mux.HandleFunc("POST /api/dialog/confirm", h.confirmDialog)
	mux.HandleFunc("POST /api/dialog/cancel", h.cancelDialog)
	mux.HandleFunc("GET /api/notice", h.takeNotice)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
}

// getSession returns the full composition snapshot the renderer draws:
// customer selection, items, derived subtotal, field errors and state.
func (h *Handlers) getSession(w http.ResponseWriter, _ *http.Request) {
	h.writeSession(w, http.StatusOK)
}

func (h *Handlers) writeSession(w http.ResponseWriter, status int) {
	items := h.session.Cart().Items()
	subtotal := h.session.Cart().Subtotal()
	customer := h.session.Customer()
	fieldErrs := h.session.FieldErrors()
	state := h.session.State()

	writeData(w, h.lg, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("state", func(e *jx.Encoder) { e.Str(string(state)) })
			e.Field("customer", func(e *jx.Encoder) { encodeCandidate(e, customer) })
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, item := range items {
						encodeLineItem(e, item)
					}
				})
			})
			e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, subtotal) })
			e.Field("errors", func(e *jx.Encoder) { encodeFieldErrors(e, fieldErrs) })
		})
	})
}

// discardSession fully resets the draft and the candidate lists, used
// when the renderer navigates away from the composition screen.
func (h *Handlers) discardSession(w http.ResponseWriter, _ *http.Request) {
	h.session.Discard()
	h.lookup.Reset()
	h.writeSession(w, http.StatusOK)
}

func (h *Handlers) selectCustomer(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	c, err := decodeCandidateBody(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		writeError(w, h.lg, http.StatusBadRequest, "malformed customer payload", nil)
		return
	}

	h.session.SelectCustomer(c)
	h.writeSession(w, http.StatusOK)
}

func (h *Handlers) addItem(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	req, err := decodeItemRequest(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		writeError(w, h.lg, http.StatusBadRequest, "malformed item payload", nil)
		return
	}
	if !req.errs.Empty() {
		writeError(w, h.lg, http.StatusUnprocessableEntity, "invalid item", req.errs)
		return
	}

	if err := h.session.AddItem(req.product, req.quantity, req.discount); err != nil {
		writeError(w, h.lg, http.StatusUnprocessableEntity, "invalid item", itemFieldErrors(err))
		return
	}
	h.writeSession(w, http.StatusCreated)
}

// removeItem is destructive, so it routes through the confirmation
// gate: the removal runs only when the renderer confirms the dialog.
func (h *Handlers) removeItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, h.lg, http.StatusBadRequest, "invalid item index", nil)
		return
	}

	h.gate.Request("Are you sure you want to delete this item?", func() error {
		h.session.RemoveItem(index)
		return nil
	})
	h.writeDialog(w, http.StatusAccepted)
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) {
	order, err := h.session.Submit(r.Context())
	if err != nil {
		status, message := submitStatus(err)
		writeError(w, h.lg, status, message, h.session.FieldErrors())
		return
	}

	writeData(w, h.lg, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, order) })
		})
	})
}

// submitStatus maps a submission failure onto an HTTP status for the
// renderer. Field detail rides along in the error envelope.
func submitStatus(err error) (int, string) {
	switch {
	case errors.Is(err, composer.ErrSubmitInFlight):
		return http.StatusConflict, "a submission is already in progress"
	case errors.Is(err, composer.ErrDraftInvalid):
		return http.StatusUnprocessableEntity, "select at least one product"
	}
	var rej *backend.RejectionError
	if errors.As(err, &rej) {
		return http.StatusUnprocessableEntity, rej.Message
	}
	return http.StatusBadGateway, "order could not be submitted, please retry"
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	kind := catalog.Kind(r.URL.Query().Get("kind"))
	if !kind.Valid() {
		writeError(w, h.lg, http.StatusBadRequest, "unknown lookup kind", nil)
		return
	}
	candidates := h.lookup.Search(r.Context(), kind, r.URL.Query().Get("q"))

	writeData(w, h.lg, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, c := range candidates {
						encodeCandidate(e, c)
					}
				})
			})
		})
	})
}

func (h *Handlers) getDialog(w http.ResponseWriter, _ *http.Request) {
	h.writeDialog(w, http.StatusOK)
}

func (h *Handlers) writeDialog(w http.ResponseWriter, status int) {
	message, open := h.gate.Pending()
	writeData(w, h.lg, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("open", func(e *jx.Encoder) { e.Bool(open) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

func (h *Handlers) confirmDialog(w http.ResponseWriter, _ *http.Request) {
	if err := h.gate.Confirm(); err != nil {
		h.lg.Warn("confirmed action failed", zap.Error(err))
		writeError(w, h.lg, http.StatusInternalServerError, "action failed", nil)
		return
	}
	h.writeDialog(w, http.StatusOK)
}

func (h *Handlers) cancelDialog(w http.ResponseWriter, _ *http.Request) {
	h.gate.Cancel()
	h.writeDialog(w, http.StatusOK)
}

// takeNotice pops the pending banner. The slot is read-once: a second
// poll returns empty until something new is opened.
func (h *Handlers) takeNotice(w http.ResponseWriter, _ *http.Request) {
	notice, ok := h.notices.Take()
	writeData(w, h.lg, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("open", func(e *jx.Encoder) { e.Bool(ok) })
			e.Field("status", func(e *jx.Encoder) { e.Str(string(notice.Status)) })
			e.Field("message", func(e *jx.Encoder) { e.Str(notice.Message) })
		})
	})
}

func (h *Handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.session.LoadOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		var rej *backend.RejectionError
		if errors.As(err, &rej) {
			writeError(w, h.lg, http.StatusNotFound, rej.Message, nil)
			return
		}
		writeError(w, h.lg, http.StatusBadGateway, "order could not be loaded", nil)
		return
	}

	writeData(w, h.lg, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, order) })
		})
	})
}

// itemFieldErrors maps add-item validation failures onto the item
// form's field paths.
func itemFieldErrors(err error) form.Errors {
	errs := make(form.Errors)
	var qErr *cart.InvalidQuantityError
	var dErr *cart.InvalidDiscountError
	switch {
	case errors.Is(err, cart.ErrNoProduct):
		errs.Set("product.id", "product is required")
	case errors.As(err, &qErr):
		errs.Set("quantity", qErr.Error())
	case errors.As(err, &dErr):
		errs.Set("discount", dErr.Error())
	default:
		errs.Set("product.id", err.Error())
	}
	return errs
}
