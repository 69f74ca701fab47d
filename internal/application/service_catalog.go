package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

func (s *Service) CreateClient(ctx context.Context, input ClientInput) (domain.Client, error) {
	now := s.nowFn()
	client := domain.Client{
		ClientID:  uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyClientInput(&client, input)
	if err := domain.ValidateClient(client); err != nil {
		return domain.Client{}, err
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

func (s *Service) GetClient(ctx context.Context, clientID string) (domain.Client, error) {
	return s.clients.GetByID(ctx, clientID)
}

func (s *Service) ListClients(ctx context.Context, query ports.PageQuery) (ListClientsOutput, error) {
	query = normalizePageQuery(query)
	clients, total, err := s.clients.List(ctx, query)
	if err != nil {
		return ListClientsOutput{}, err
	}
	return ListClientsOutput{
		Clients:    clients,
		Pagination: contracts.Pagination{Limit: query.Limit, Offset: query.Offset, Total: total},
	}, nil
}

func (s *Service) UpdateClient(ctx context.Context, clientID string, input ClientInput) (domain.Client, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	applyClientInput(&client, input)
	if err := domain.ValidateClient(client); err != nil {
		return domain.Client{}, err
	}
	client.UpdatedAt = s.nowFn()
	if err := s.clients.Update(ctx, client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

// DeleteClient fails with domain.ErrConflict while invoices still reference the client.
func (s *Service) DeleteClient(ctx context.Context, clientID string) error {
	if _, err := s.clients.GetByID(ctx, clientID); err != nil {
		return err
	}
	_, total, err := s.invoices.List(ctx, ports.InvoiceQuery{ClientID: clientID, Limit: 1})
	if err != nil {
		return err
	}
	if total > 0 {
		return fmt.Errorf("%w: client %s still has %d invoice(s)", domain.ErrConflict, clientID, total)
	}
	return s.clients.Delete(ctx, clientID)
}

func (s *Service) CreateCatalogService(ctx context.Context, input ServiceInput) (domain.Service, error) {
	now := s.nowFn()
	svc := domain.Service{
		ServiceID: uuid.NewString(),
		Price:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyServiceInput(&svc, input)
	if err := domain.ValidateService(svc); err != nil {
		return domain.Service{}, err
	}
	if err := s.catalog.Create(ctx, svc); err != nil {
		return domain.Service{}, err
	}
	return svc, nil
}

func (s *Service) GetCatalogService(ctx context.Context, serviceID string) (domain.Service, error) {
	return s.catalog.GetByID(ctx, serviceID)
}

func (s *Service) ListCatalogServices(ctx context.Context, query ports.PageQuery) (ListServicesOutput, error) {
	query = normalizePageQuery(query)
	services, total, err := s.catalog.List(ctx, query)
	if err != nil {
		return ListServicesOutput{}, err
	}
	return ListServicesOutput{
		Services:   services,
		Pagination: contracts.Pagination{Limit: query.Limit, Offset: query.Offset, Total: total},
	}, nil
}

func (s *Service) UpdateCatalogService(ctx context.Context, serviceID string, input ServiceInput) (domain.Service, error) {
	svc, err := s.catalog.GetByID(ctx, serviceID)
	if err != nil {
		return domain.Service{}, err
	}
	applyServiceInput(&svc, input)
	if err := domain.ValidateService(svc); err != nil {
		return domain.Service{}, err
	}
	svc.UpdatedAt = s.nowFn()
	if err := s.catalog.Update(ctx, svc); err != nil {
		return domain.Service{}, err
	}
	return svc, nil
}

// DeleteCatalogService relies on the store to refuse deleting a service that
// invoice items still reference.
func (s *Service) DeleteCatalogService(ctx context.Context, serviceID string) error {
	return s.catalog.Delete(ctx, serviceID)
}

func applyClientInput(c *domain.Client, in ClientInput) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		c.Email = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		c.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		c.Address = *in.Address
	}
}

func applyServiceInput(svc *domain.Service, in ServiceInput) {
	if in.Name != nil {
		svc.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		svc.Description = *in.Description
	}
	if in.Price != nil {
		svc.Price = *in.Price
	}
}
