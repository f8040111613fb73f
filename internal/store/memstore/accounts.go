package memstore

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
	"marketplace/internal/store"
)

func (s *Store) InsertComplaint(ctx context.Context, c *models.Complaint) error {
	defer s.lock(ctx)()
	for _, existing := range s.data.complaints {
		if existing.CartItemID == c.CartItemID {
			return store.ErrDuplicate
		}
	}
	assignID(&c.ID)
	s.data.complaints[c.ID] = *c
	return nil
}

func (s *Store) GetComplaint(ctx context.Context, id primitive.ObjectID) (models.Complaint, error) {
	defer s.rlock(ctx)()
	c, ok := s.data.complaints[id]
	if !ok {
		return models.Complaint{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) FindComplaintByCartItem(ctx context.Context, cartItemID primitive.ObjectID) (models.Complaint, error) {
	defer s.rlock(ctx)()
	for _, c := range s.data.complaints {
		if c.CartItemID == cartItemID {
			return c, nil
		}
	}
	return models.Complaint{}, store.ErrNotFound
}

func (s *Store) ResolveComplaint(ctx context.Context, id primitive.ObjectID, reply string, status models.ComplaintStatus) error {
	defer s.lock(ctx)()
	c, ok := s.data.complaints[id]
	if !ok || c.Status != models.ComplaintPending {
		return store.ErrNotFound
	}
	c.Reply = reply
	c.Status = status
	c.UpdatedAt = time.Now()
	s.data.complaints[id] = c
	return nil
}

func (s *Store) ListComplaints(ctx context.Context, userID *primitive.ObjectID, status models.ComplaintStatus) ([]models.Complaint, error) {
	defer s.rlock(ctx)()
	out := make([]models.Complaint, 0)
	for _, c := range s.data.complaints {
		if userID != nil && c.UserID != *userID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) UpsertReview(ctx context.Context, r *models.Review) error {
	defer s.lock(ctx)()
	for id, existing := range s.data.reviews {
		if existing.UserID == r.UserID && existing.ProductID == r.ProductID {
			existing.Rating = r.Rating
			existing.Comment = r.Comment
			existing.UpdatedAt = r.UpdatedAt
			s.data.reviews[id] = existing
			*r = existing
			return nil
		}
	}
	assignID(&r.ID)
	s.data.reviews[r.ID] = *r
	return nil
}

func (s *Store) ListReviews(ctx context.Context, productID primitive.ObjectID) ([]models.Review, error) {
	defer s.rlock(ctx)()
	out := make([]models.Review, 0)
	for _, r := range s.data.reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	defer s.lock(ctx)()
	for _, existing := range s.data.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	assignID(&u.ID)
	s.data.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	defer s.rlock(ctx)()
	u, ok := s.data.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	defer s.rlock(ctx)()
	for _, u := range s.data.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (s *Store) SetAddresses(ctx context.Context, id primitive.ObjectID, addresses []models.Address) error {
	defer s.lock(ctx)()
	u, ok := s.data.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Addresses = append([]models.Address(nil), addresses...)
	u.UpdatedAt = time.Now()
	s.data.users[id] = u
	return nil
}

func (s *Store) InsertRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	defer s.lock(ctx)()
	assignID(&t.ID)
	s.data.tokens[t.ID] = *t
	return nil
}

func (s *Store) FindActiveRefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	defer s.rlock(ctx)()
	for _, t := range s.data.tokens {
		if t.TokenHash == tokenHash && !t.Revoked {
			return t, nil
		}
	}
	return models.RefreshToken{}, store.ErrNotFound
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	defer s.lock(ctx)()
	t, ok := s.data.tokens[id]
	if !ok || t.Revoked {
		return store.ErrNotFound
	}
	t.Revoked = true
	t.ReplacedByToken = replacedBy
	s.data.tokens[id] = t
	return nil
}
