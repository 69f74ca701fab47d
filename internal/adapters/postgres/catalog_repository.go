package postgres

import (
	"context"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
	"gorm.io/gorm"
)

type clientRepository struct {
	db *gorm.DB
}

func (r *clientRepository) Create(ctx context.Context, client domain.Client) error {
	row := toClientModel(client)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *clientRepository) GetByID(ctx context.Context, clientID string) (domain.Client, error) {
	if err := checkKey(clientID); err != nil {
		return domain.Client{}, err
	}
	var row clientModel
	if err := r.db.WithContext(ctx).Where("client_id = ?", clientID).Take(&row).Error; err != nil {
		return domain.Client{}, notFoundOr(err)
	}
	return toDomainClient(row), nil
}

func (r *clientRepository) List(ctx context.Context, query ports.PageQuery) ([]domain.Client, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&clientModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []clientModel
	if err := r.db.WithContext(ctx).Order("name ASC").Limit(query.Limit).Offset(query.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Client, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainClient(row))
	}
	return out, int(total), nil
}

func (r *clientRepository) Update(ctx context.Context, client domain.Client) error {
	if err := checkKey(client.ClientID); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&clientModel{}).
		Where("client_id = ?", client.ClientID).
		Updates(map[string]any{
			"name":       client.Name,
			"email":      client.Email,
			"phone":      client.Phone,
			"address":    client.Address,
			"updated_at": client.UpdatedAt,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return domain.ErrConflict
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *clientRepository) Delete(ctx context.Context, clientID string) error {
	if err := checkKey(clientID); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Where("client_id = ?", clientID).Delete(&clientModel{})
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return domain.ErrConflict
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type serviceRepository struct {
	db *gorm.DB
}

func (r *serviceRepository) Create(ctx context.Context, service domain.Service) error {
	row := toServiceModel(service)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *serviceRepository) GetByID(ctx context.Context, serviceID string) (domain.Service, error) {
	if err := checkKey(serviceID); err != nil {
		return domain.Service{}, err
	}
	var row serviceModel
	if err := r.db.WithContext(ctx).Where("service_id = ?", serviceID).Take(&row).Error; err != nil {
		return domain.Service{}, notFoundOr(err)
	}
	return toDomainService(row), nil
}

func (r *serviceRepository) List(ctx context.Context, query ports.PageQuery) ([]domain.Service, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&serviceModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []serviceModel
	if err := r.db.WithContext(ctx).Order("name ASC").Limit(query.Limit).Offset(query.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Service, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainService(row))
	}
	return out, int(total), nil
}

func (r *serviceRepository) Update(ctx context.Context, service domain.Service) error {
	if err := checkKey(service.ServiceID); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&serviceModel{}).
		Where("service_id = ?", service.ServiceID).
		Updates(map[string]any{
			"name":        service.Name,
			"description": service.Description,
			"price":       service.Price,
			"updated_at":  service.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete relies on the invoice_items foreign key to refuse removing a service
// that is still billed.
func (r *serviceRepository) Delete(ctx context.Context, serviceID string) error {
	if err := checkKey(serviceID); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Where("service_id = ?", serviceID).Delete(&serviceModel{})
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return domain.ErrConflict
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
