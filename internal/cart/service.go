package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/m41na/payment-agent-sub001/internal/domain"
)

// Service is the read/write surface over a user's cart. Reads go through the
// Redis cache with singleflight collapsing concurrent misses; mutations write
// to Mongo and invalidate the cache.
type Service struct {
	repo  Repository
	cache Cache
	sfg   singleflight.Group
}

func NewService(repo Repository, cache Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}

		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cart cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errGet != nil && errors.Is(errGet, ErrCartNotFound) {
			// missing cart reads as an empty cart
			return &domain.Cart{
				UserID:    userID,
				Items:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), userID, cart); errSet != nil {
				log.Printf("cart cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// Summary computes checkout totals for the user's current cart.
func (s *Service) Summary(ctx context.Context, userID string) (domain.CartSummary, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return domain.CartSummary{}, err
	}
	return ComputeSummary(cart.Items), nil
}

func (s *Service) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		log.Printf("cart repo add item error: %v", err)
		return err
	}

	s.invalidate(userID)
	return nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID string, productID string, quantity int) error {
	if err := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); err != nil {
		log.Printf("cart repo update quantity error: %v", err)
		return err
	}

	s.invalidate(userID)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, userID string, productID string) error {
	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		log.Printf("cart repo remove item error: %v", err)
		return err
	}

	s.invalidate(userID)
	return nil
}

// ClearCart drops the remote cart and its cache entry. Called after a
// persisted order on checkout success and on user sign-out.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.DeleteCart(ctx, userID); err != nil && !errors.Is(err, ErrCartNotFound) {
		log.Printf("cart repo delete error: %v", err)
		return err
	}

	s.invalidate(userID)
	return nil
}

func (s *Service) invalidate(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cart cache invalidate error: %v", err)
	}
}
