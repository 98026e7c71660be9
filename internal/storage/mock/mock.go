// Package mock provides in-memory implementations of the storage interfaces for testing.
package mock

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/storage"
)

// Store is an in-memory storage.Store. Transactions hold the store lock for
// their whole duration, so they are fully serialized.
type Store struct {
	mu    sync.Mutex
	clock time.Time

	photographers map[uuid.UUID]models.Photographer
	clients       map[uuid.UUID]models.Client
	events        map[uuid.UUID]models.Event
	photos        map[uuid.UUID]models.Photo
	faces         map[uuid.UUID]models.PhotoFace
	purchases     map[uuid.UUID]models.Purchase
	withdrawals   map[uuid.UUID]models.Withdrawal
	deletions     map[uuid.UUID]models.DeletionRequest
	transactions  []models.Transaction

	// Error injection
	GetPhotoError        error
	CompleteError        error
	SetPhotoStatusError  error
	UpdateClientFaceErr  error
	ListFacesError       error
	ListClientsError     error
	ClaimFaceError       error
	CreatePurchaseError  error
	InsertTransactionErr error
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		photographers: make(map[uuid.UUID]models.Photographer),
		clients:       make(map[uuid.UUID]models.Client),
		events:        make(map[uuid.UUID]models.Event),
		photos:        make(map[uuid.UUID]models.Photo),
		faces:         make(map[uuid.UUID]models.PhotoFace),
		purchases:     make(map[uuid.UUID]models.Purchase),
		withdrawals:   make(map[uuid.UUID]models.Withdrawal),
		deletions:     make(map[uuid.UUID]models.DeletionRequest),
	}
}

// tick returns a strictly increasing timestamp so creation order is deterministic.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *Store) Ping(ctx context.Context) error { return nil }

// --- Users ---

func (s *Store) CreatePhotographer(ctx context.Context, p *models.Photographer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.photographers[p.ID]; ok {
		return fmt.Errorf("create photographer: %w", storage.ErrDuplicate)
	}
	p.CreatedAt = s.tick()
	s.photographers[p.ID] = *p
	return nil
}

func (s *Store) GetPhotographer(ctx context.Context, id uuid.UUID) (*models.Photographer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photographers[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) CreateClient(ctx context.Context, c *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; ok {
		return fmt.Errorf("create client: %w", storage.ErrDuplicate)
	}
	if c.FaceStatus == "" {
		c.FaceStatus = models.FaceStatusUnprocessed
	}
	c.CreatedAt = s.tick()
	c.Embedding = slices.Clone(c.Embedding)
	s.clients[c.ID] = *c
	return nil
}

func (s *Store) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) SetClientSelfie(ctx context.Context, id uuid.UUID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return fmt.Errorf("set client selfie: %w", storage.ErrNotFound)
	}
	c.SelfieKey = key
	c.Embedding = nil
	c.FaceStatus = models.FaceStatusUnprocessed
	c.FaceError = ""
	s.clients[id] = c
	return nil
}

func (s *Store) UpdateClientFace(ctx context.Context, id uuid.UUID, status models.FaceStatus, embedding []float32, faceErr string) error {
	if s.UpdateClientFaceErr != nil {
		return s.UpdateClientFaceErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return fmt.Errorf("update client face: %w", storage.ErrNotFound)
	}
	c.FaceStatus = status
	c.Embedding = slices.Clone(embedding)
	c.FaceError = faceErr
	s.clients[id] = c
	return nil
}

func (s *Store) ListMatchableClients(ctx context.Context) ([]models.Client, error) {
	if s.ListClientsError != nil {
		return nil, s.ListClientsError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Client
	for _, c := range s.clients {
		if c.Matchable() {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.Client) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

// --- Events ---

func (s *Store) CreateEvent(ctx context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = s.tick()
	s.events[e.ID] = *e
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *Store) RecountEventPhotos(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recount(id)
	return nil
}

func (s *Store) recount(eventID uuid.UUID) {
	e, ok := s.events[eventID]
	if !ok {
		return
	}
	n := 0
	for _, p := range s.photos {
		if p.EventID != nil && *p.EventID == eventID && p.Status == models.PhotoStatusActive {
			n++
		}
	}
	e.PhotosCount = n
	s.events[eventID] = e
}

// --- Photos ---

func (s *Store) CreatePhoto(ctx context.Context, p *models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.PhotoStatusProcessing
	}
	p.CreatedAt = s.tick()
	p.UpdatedAt = p.CreatedAt
	s.photos[p.ID] = *p
	return nil
}

func (s *Store) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	if s.GetPhotoError != nil {
		return nil, s.GetPhotoError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) ListPhotoIDs(ctx context.Context, q storage.PhotoQuery) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var photos []models.Photo
	for _, p := range s.photos {
		if q.Status != nil && p.Status != *q.Status {
			continue
		}
		if q.UnprocessedOnly && p.FacesProcessed {
			continue
		}
		if !q.CreatedBefore.IsZero() && !p.CreatedAt.Before(q.CreatedBefore) {
			continue
		}
		photos = append(photos, p)
	}
	slices.SortFunc(photos, func(a, b models.Photo) int { return a.CreatedAt.Compare(b.CreatedAt) })
	ids := make([]uuid.UUID, 0, len(photos))
	for _, p := range photos {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (s *Store) SetPhotoStatus(ctx context.Context, id uuid.UUID, status models.PhotoStatus, processingErr string) error {
	if s.SetPhotoStatusError != nil {
		return s.SetPhotoStatusError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok {
		return fmt.Errorf("set photo status: %w", storage.ErrNotFound)
	}
	p.Status = status
	p.ProcessingError = processingErr
	s.photos[id] = p
	if p.EventID != nil {
		s.recount(*p.EventID)
	}
	return nil
}

func (s *Store) FailPhotoProcessing(ctx context.Context, id uuid.UUID, reason string) error {
	if s.SetPhotoStatusError != nil {
		return s.SetPhotoStatusError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok {
		return fmt.Errorf("fail photo processing: %w", storage.ErrNotFound)
	}
	switch p.Status {
	case models.PhotoStatusProcessing, models.PhotoStatusActive, models.PhotoStatusError:
		p.Status = models.PhotoStatusError
	}
	p.ProcessingError = reason
	s.photos[id] = p
	if p.EventID != nil {
		s.recount(*p.EventID)
	}
	return nil
}

func (s *Store) CompletePhotoProcessing(ctx context.Context, res *models.ProcessingResult) error {
	if s.CompleteError != nil {
		return s.CompleteError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[res.PhotoID]
	if !ok {
		return fmt.Errorf("complete photo processing: %w", storage.ErrNotFound)
	}
	for id, f := range s.faces {
		if f.PhotoID == res.PhotoID {
			delete(s.faces, id)
		}
	}
	for i := range res.Faces {
		f := &res.Faces[i]
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		f.PhotoID = res.PhotoID
		f.CreatedAt = s.tick()
		s.faces[f.ID] = *f
	}
	p.WatermarkedKey = res.WatermarkedKey
	p.ThumbnailKey = res.ThumbnailKey
	p.Width, p.Height = res.Width, res.Height
	p.FacesCount = len(res.Faces)
	p.FacesProcessed = res.FacesProcessed
	p.ProcessingError = ""
	if p.Status == models.PhotoStatusProcessing || p.Status == models.PhotoStatusError {
		p.Status = models.PhotoStatusActive
	}
	s.photos[p.ID] = p
	if p.EventID != nil {
		s.recount(*p.EventID)
	}
	return nil
}

func (s *Store) ListClientPhotos(ctx context.Context, clientID uuid.UUID, f models.PhotoFilter) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make(map[uuid.UUID]bool)
	for _, face := range s.faces {
		if face.MatchedClientID != nil && *face.MatchedClientID == clientID {
			matched[face.PhotoID] = true
		}
	}
	pending := make(map[uuid.UUID]bool)
	for _, r := range s.deletions {
		if r.Status == models.DeletionStatusPending {
			pending[r.PhotoID] = true
		}
	}

	var out []models.Photo
	for id := range matched {
		p, ok := s.photos[id]
		if !ok || p.Status != models.PhotoStatusActive || pending[id] {
			continue
		}
		if !s.photoMatchesFilter(p, f) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b models.Photo) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *Store) photoMatchesFilter(p models.Photo, f models.PhotoFilter) bool {
	if f.PriceMin != nil && p.Price.LessThan(*f.PriceMin) {
		return false
	}
	if f.PriceMax != nil && p.Price.GreaterThan(*f.PriceMax) {
		return false
	}
	if f.EventType == "" && f.City == "" && f.DateFrom == nil && f.DateTo == nil {
		return true
	}
	if p.EventID == nil {
		return false
	}
	e, ok := s.events[*p.EventID]
	if !ok {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.City != "" && !strings.Contains(strings.ToLower(e.City), strings.ToLower(f.City)) {
		return false
	}
	if f.DateFrom != nil && e.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && e.Date.After(*f.DateTo) {
		return false
	}
	return true
}

// --- Faces ---

func (s *Store) ListPhotoFaces(ctx context.Context, photoID uuid.UUID) ([]models.PhotoFace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PhotoFace
	for _, f := range s.faces {
		if f.PhotoID == photoID {
			out = append(out, f)
		}
	}
	sortFaces(out)
	return out, nil
}

func (s *Store) ListFacesForMatching(ctx context.Context, unmatchedOnly bool) ([]models.PhotoFace, error) {
	if s.ListFacesError != nil {
		return nil, s.ListFacesError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PhotoFace
	for _, f := range s.faces {
		if p, ok := s.photos[f.PhotoID]; !ok || p.Status != models.PhotoStatusActive {
			continue
		}
		if unmatchedOnly && f.MatchedClientID != nil {
			continue
		}
		out = append(out, f)
	}
	sortFaces(out)
	return out, nil
}

func sortFaces(faces []models.PhotoFace) {
	slices.SortFunc(faces, func(a, b models.PhotoFace) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}

func (s *Store) ClaimFace(ctx context.Context, faceID, clientID uuid.UUID, confidence float64) (bool, error) {
	if s.ClaimFaceError != nil {
		return false, s.ClaimFaceError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faces[faceID]
	if !ok || f.MatchedClientID != nil {
		return false, nil
	}
	id := clientID
	f.MatchedClientID = &id
	f.Confidence = confidence
	s.faces[faceID] = f
	return true, nil
}

func (s *Store) AssignFace(ctx context.Context, faceID uuid.UUID, clientID *uuid.UUID, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faces[faceID]
	if !ok {
		return fmt.Errorf("assign face: %w", storage.ErrNotFound)
	}
	if clientID == nil {
		f.MatchedClientID = nil
		f.Confidence = 0
	} else {
		id := *clientID
		f.MatchedClientID = &id
		f.Confidence = confidence
	}
	s.faces[faceID] = f
	return nil
}

// --- Ledger ---

func (s *Store) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	if s.CreatePurchaseError != nil {
		return s.CreatePurchaseError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.purchases {
		if p.PaymentID != "" && existing.PaymentID == p.PaymentID {
			return fmt.Errorf("create purchase: %w", storage.ErrDuplicate)
		}
		if existing.DownloadToken == p.DownloadToken {
			return fmt.Errorf("create purchase: %w", storage.ErrDuplicate)
		}
	}
	p.CreatedAt = s.tick()
	s.purchases[p.ID] = *p
	return nil
}

func (s *Store) GetPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) GetPurchaseByPaymentID(ctx context.Context, paymentID string) (*models.Purchase, error) {
	if paymentID == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.purchases {
		if p.PaymentID == paymentID {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *Store) HasPaidPurchase(ctx context.Context, buyerID, photoID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPaid(buyerID, photoID, uuid.Nil), nil
}

func (s *Store) hasPaid(buyerID, photoID, exclude uuid.UUID) bool {
	for _, p := range s.purchases {
		if p.ID != exclude && p.BuyerID == buyerID && p.PhotoID == photoID && p.Status == models.PurchaseStatusPaid {
			return true
		}
	}
	return false
}

func (s *Store) SetPurchasePayment(ctx context.Context, id uuid.UUID, paymentID, paymentURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return fmt.Errorf("set purchase payment: %w", storage.ErrNotFound)
	}
	p.PaymentID = paymentID
	p.PaymentURL = paymentURL
	s.purchases[id] = p
	return nil
}

func (s *Store) CreateDeletionRequest(ctx context.Context, r *models.DeletionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.deletions {
		if existing.PhotoID == r.PhotoID && existing.RequesterID == r.RequesterID &&
			existing.Status == models.DeletionStatusPending {
			return fmt.Errorf("create deletion request: %w", storage.ErrDuplicate)
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Status = models.DeletionStatusPending
	r.CreatedAt = s.tick()
	s.deletions[r.ID] = *r
	return nil
}

func (s *Store) GetDeletionRequest(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.deletions[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) HasPendingDeletionRequest(ctx context.Context, photoID, requesterID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.deletions {
		if r.PhotoID == photoID && r.RequesterID == requesterID && r.Status == models.DeletionStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID == userID {
			out = append(out, s.transactions[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// WithTx serializes fn against every other store call and restores the
// previous state when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&tx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	photographers map[uuid.UUID]models.Photographer
	clients       map[uuid.UUID]models.Client
	photos        map[uuid.UUID]models.Photo
	events        map[uuid.UUID]models.Event
	purchases     map[uuid.UUID]models.Purchase
	withdrawals   map[uuid.UUID]models.Withdrawal
	deletions     map[uuid.UUID]models.DeletionRequest
	transactions  []models.Transaction
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		photographers: maps.Clone(s.photographers),
		clients:       maps.Clone(s.clients),
		photos:        maps.Clone(s.photos),
		events:        maps.Clone(s.events),
		purchases:     maps.Clone(s.purchases),
		withdrawals:   maps.Clone(s.withdrawals),
		deletions:     maps.Clone(s.deletions),
		transactions:  slices.Clone(s.transactions),
	}
}

func (s *Store) restore(snap snapshot) {
	s.photographers = snap.photographers
	s.clients = snap.clients
	s.photos = snap.photos
	s.events = snap.events
	s.purchases = snap.purchases
	s.withdrawals = snap.withdrawals
	s.deletions = snap.deletions
	s.transactions = snap.transactions
}

// Transactions returns every ledger entry in insertion order.
func (s *Store) Transactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transactions)
}

// SetBalance seeds a photographer balance for tests.
func (s *Store) SetBalance(id uuid.UUID, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.photographers[id]
	p.Balance = balance
	s.photographers[id] = p
}

// tx runs with the store lock already held.
type tx struct {
	s *Store
}

func (t *tx) LockPurchase(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	p, ok := t.s.purchases[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *tx) LockPhotographer(ctx context.Context, id uuid.UUID) (*models.Photographer, error) {
	p, ok := t.s.photographers[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *tx) LockClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	c, ok := t.s.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *tx) LockPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	p, ok := t.s.photos[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *tx) LockWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, ok := t.s.withdrawals[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (t *tx) LockDeletionRequest(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error) {
	r, ok := t.s.deletions[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *tx) HasOtherPaidPurchase(ctx context.Context, buyerID, photoID, exclude uuid.UUID) (bool, error) {
	return t.s.hasPaid(buyerID, photoID, exclude), nil
}

func (t *tx) UpdatePurchase(ctx context.Context, p *models.Purchase) error {
	if _, ok := t.s.purchases[p.ID]; !ok {
		return fmt.Errorf("update purchase: %w", storage.ErrNotFound)
	}
	if p.Status == models.PurchaseStatusPaid && t.s.hasPaid(p.BuyerID, p.PhotoID, p.ID) {
		return fmt.Errorf("update purchase: %w", storage.ErrDuplicate)
	}
	t.s.purchases[p.ID] = *p
	return nil
}

func (t *tx) UpdatePhotographerFunds(ctx context.Context, p *models.Photographer) error {
	if _, ok := t.s.photographers[p.ID]; !ok {
		return fmt.Errorf("update photographer funds: %w", storage.ErrNotFound)
	}
	if p.Balance.IsNegative() {
		return errors.New("update photographer funds: balance check violated")
	}
	t.s.photographers[p.ID] = *p
	return nil
}

func (t *tx) UpdateClientTotals(ctx context.Context, c *models.Client) error {
	existing, ok := t.s.clients[c.ID]
	if !ok {
		return fmt.Errorf("update client totals: %w", storage.ErrNotFound)
	}
	existing.TotalPurchases = c.TotalPurchases
	existing.TotalSpent = c.TotalSpent
	t.s.clients[c.ID] = existing
	return nil
}

func (t *tx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	if t.s.InsertTransactionErr != nil {
		return t.s.InsertTransactionErr
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	txn.CreatedAt = t.s.tick()
	t.s.transactions = append(t.s.transactions, *txn)
	return nil
}

func (t *tx) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.CreatedAt = t.s.tick()
	t.s.withdrawals[w.ID] = *w
	return nil
}

func (t *tx) UpdateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	if _, ok := t.s.withdrawals[w.ID]; !ok {
		return fmt.Errorf("update withdrawal: %w", storage.ErrNotFound)
	}
	t.s.withdrawals[w.ID] = *w
	return nil
}

func (t *tx) UpdateDeletionRequest(ctx context.Context, r *models.DeletionRequest) error {
	if _, ok := t.s.deletions[r.ID]; !ok {
		return fmt.Errorf("update deletion request: %w", storage.ErrNotFound)
	}
	t.s.deletions[r.ID] = *r
	return nil
}

func (t *tx) SetPhotoStatus(ctx context.Context, id uuid.UUID, status models.PhotoStatus) error {
	p, ok := t.s.photos[id]
	if !ok {
		return fmt.Errorf("set photo status: %w", storage.ErrNotFound)
	}
	p.Status = status
	t.s.photos[id] = p
	return nil
}

func (t *tx) RecountEventPhotos(ctx context.Context, eventID uuid.UUID) error {
	t.s.recount(eventID)
	return nil
}
