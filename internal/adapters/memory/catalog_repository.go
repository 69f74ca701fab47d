package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

type ClientRepository struct {
	s *store
}

func (r *ClientRepository) Create(_ context.Context, client domain.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.clients {
		if strings.EqualFold(existing.Email, client.Email) {
			return domain.ErrConflict
		}
	}
	r.s.clients[client.ClientID] = client
	return nil
}

func (r *ClientRepository) GetByID(_ context.Context, clientID string) (domain.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	client, ok := r.s.clients[clientID]
	if !ok {
		return domain.Client{}, domain.ErrNotFound
	}
	return client, nil
}

func (r *ClientRepository) List(_ context.Context, query ports.PageQuery) ([]domain.Client, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := make([]domain.Client, 0, len(r.s.clients))
	for _, client := range r.s.clients {
		all = append(all, client)
	}
	slices.SortFunc(all, func(a, b domain.Client) int { return strings.Compare(a.Name, b.Name) })
	return paginate(all, query.Limit, query.Offset), len(all), nil
}

func (r *ClientRepository) Update(_ context.Context, client domain.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clients[client.ClientID]; !ok {
		return domain.ErrNotFound
	}
	for id, existing := range r.s.clients {
		if id != client.ClientID && strings.EqualFold(existing.Email, client.Email) {
			return domain.ErrConflict
		}
	}
	r.s.clients[client.ClientID] = client
	return nil
}

func (r *ClientRepository) Delete(_ context.Context, clientID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clients[clientID]; !ok {
		return domain.ErrNotFound
	}
	for _, invoice := range r.s.invoices {
		if invoice.ClientID == clientID {
			return domain.ErrConflict
		}
	}
	delete(r.s.clients, clientID)
	return nil
}

type ServiceRepository struct {
	s *store
}

func (r *ServiceRepository) Create(_ context.Context, service domain.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.services[service.ServiceID]; exists {
		return domain.ErrConflict
	}
	r.s.services[service.ServiceID] = service
	return nil
}

func (r *ServiceRepository) GetByID(_ context.Context, serviceID string) (domain.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	service, ok := r.s.services[serviceID]
	if !ok {
		return domain.Service{}, domain.ErrNotFound
	}
	return service, nil
}

func (r *ServiceRepository) List(_ context.Context, query ports.PageQuery) ([]domain.Service, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := make([]domain.Service, 0, len(r.s.services))
	for _, service := range r.s.services {
		all = append(all, service)
	}
	slices.SortFunc(all, func(a, b domain.Service) int { return strings.Compare(a.Name, b.Name) })
	return paginate(all, query.Limit, query.Offset), len(all), nil
}

func (r *ServiceRepository) Update(_ context.Context, service domain.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.services[service.ServiceID]; !ok {
		return domain.ErrNotFound
	}
	r.s.services[service.ServiceID] = service
	return nil
}

func (r *ServiceRepository) Delete(_ context.Context, serviceID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.services[serviceID]; !ok {
		return domain.ErrNotFound
	}
	for _, invoice := range r.s.invoices {
		for _, item := range invoice.Items {
			if item.ServiceID == serviceID {
				return domain.ErrConflict
			}
		}
	}
	delete(r.s.services, serviceID)
	return nil
}
