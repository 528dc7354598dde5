package pos

import (
	"errors"
	"sync"
	"time"

	"github.com/rfaisal87-commits/pure-gold-erp/internal/domain"
)

type State string

const (
	StateIdle               State = "idle"
	StateTotalingCart       State = "totaling_cart"
	StateCreatingSaleHeader State = "creating_sale_header"
	StatePostingLines       State = "posting_lines"
	StateCompleted          State = "completed"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrNoInvoice          = errors.New("no completed sale in this session")
)

// Session is the checkout state of one signed-in operator: the cart, the
// workflow state and the snapshot of the last completed sale.
type Session struct {
	mu          sync.Mutex
	id          string
	cart        Cart
	state       State
	busy        bool
	lastInvoice *domain.InvoiceSnapshot
	touchedAt   time.Time
}

func NewSession(id string) *Session {
	return &Session{id: id, state: StateIdle, touchedAt: time.Now().UTC()}
}

func (s *Session) ID() string {
	return s.id
}

// Add puts one unit of product in the cart. It is refused while a checkout
// is running so the posted lines match what gets cleared.
func (s *Session) Add(product domain.Product) (domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return domain.CartLine{}, ErrCheckoutInProgress
	}
	if s.state == StateCompleted {
		s.state = StateIdle
	}
	s.touchedAt = time.Now().UTC()
	return s.cart.AddOrIncrement(product), nil
}

// Discard drops the cart without recording anything.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return ErrCheckoutInProgress
	}
	s.cart.Clear()
	s.state = StateIdle
	s.touchedAt = time.Now().UTC()
	return nil
}

func (s *Session) View() domain.CartView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.CartView{
		SessionID: s.id,
		State:     string(s.state),
		Lines:     s.cart.Lines(),
		Total:     s.cart.Total(),
	}
}

// BeginCheckout reserves the session for one checkout and returns the cart
// lines as they stand. The cart itself is untouched until Complete.
func (s *Session) BeginCheckout() ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return nil, ErrCheckoutInProgress
	}
	if s.cart.Empty() {
		return nil, ErrEmptyCart
	}
	s.busy = true
	s.state = StateIdle
	s.touchedAt = time.Now().UTC()
	return s.cart.Lines(), nil
}

// Advance moves a running checkout to the next state.
func (s *Session) Advance(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		s.state = next
	}
}

// Abort ends a running checkout without a sale. The cart is retained.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.state = StateIdle
}

// Complete records the invoice snapshot and clears the cart.
func (s *Session) Complete(snapshot domain.InvoiceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastInvoice = &snapshot
	s.cart.Clear()
	s.busy = false
	s.state = StateCompleted
	s.touchedAt = time.Now().UTC()
}

func (s *Session) LastInvoice() (domain.InvoiceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastInvoice == nil {
		return domain.InvoiceSnapshot{}, ErrNoInvoice
	}
	snap := *s.lastInvoice
	snap.Items = append([]domain.CartLine(nil), s.lastInvoice.Items...)
	return snap, nil
}

func (s *Session) expired(now time.Time, maxIdle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.busy && now.Sub(s.touchedAt) > maxIdle
}

// Registry maps identity sessions to checkout sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating an empty one on first use.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		session = NewSession(id)
		r.sessions[id] = session
	}
	return session
}

// Drop forgets a session; its cart is discarded.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions untouched for longer than maxIdle and reports how
// many were removed. Sessions with a checkout in flight are kept.
func (r *Registry) Sweep(now time.Time, maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if session.expired(now, maxIdle) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
