package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/posbridge/backend/internal/domain/order"
	"github.com/posbridge/backend/internal/infrastructure/persistence/models"
)

// OrderRepository is the GORM implementation of order.Repository. Create
// writes the whole order graph in one transaction; shared entities
// (customer, local info, platform restaurant) are found-or-created so
// repeat orders reuse the same rows.
type OrderRepository struct {
	db     *Database
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *Database, logger *zap.Logger) *OrderRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderRepository{db: db, logger: logger}
}

// Create persists the order and all of its relations atomically.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.upsertCustomer(tx, o.Customer); err != nil {
			return fmt.Errorf("customer: %w", err)
		}
		if err := tx.Create(models.NewPaymentModel(o.Payment)).Error; err != nil {
			return fmt.Errorf("payment: %w", err)
		}
		if err := tx.Create(models.NewPriceModel(o.Price)).Error; err != nil {
			return fmt.Errorf("price: %w", err)
		}
		if err := r.findOrCreateLocalInfo(tx, o.LocalInfo); err != nil {
			return fmt.Errorf("local info: %w", err)
		}
		if err := r.findOrCreatePlatformRestaurant(tx, o.PlatformRestaurant); err != nil {
			return fmt.Errorf("platform restaurant: %w", err)
		}

		if err := tx.Create(models.NewOrderModel(o)).Error; err != nil {
			return fmt.Errorf("order: %w", err)
		}

		if o.Delivery != nil {
			o.Delivery.OrderID = o.ID
			if err := tx.Create(models.NewDeliveryModel(o.Delivery, o.ID)).Error; err != nil {
				return fmt.Errorf("delivery: %w", err)
			}
		}
		if o.Pickup != nil {
			o.Pickup.OrderID = o.ID
			if err := tx.Create(models.NewPickupModel(o.Pickup, o.ID)).Error; err != nil {
				return fmt.Errorf("pickup: %w", err)
			}
		}

		for i := range o.Products {
			if err := r.insertProduct(tx, &o.Products[i], o.ID); err != nil {
				return fmt.Errorf("product %d: %w", i, err)
			}
		}

		for i := range o.Discounts {
			o.Discounts[i].OrderID = &o.ID
			if err := r.insertDiscount(tx, &o.Discounts[i]); err != nil {
				return fmt.Errorf("order discount %d: %w", i, err)
			}
		}

		for i := range o.DeliveryFees {
			o.DeliveryFees[i].OrderID = o.ID
			if err := tx.Create(models.NewDeliveryFeeModel(&o.DeliveryFees[i], o.ID)).Error; err != nil {
				return fmt.Errorf("delivery fee %d: %w", i, err)
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return order.ErrDuplicateOrder
		}
		return err
	}
	return nil
}

// upsertCustomer reuses the existing customer row for a known email,
// refreshing its mutable fields, and creates a new row otherwise.
// Customers without an email are never deduplicated.
func (r *OrderRepository) upsertCustomer(tx *gorm.DB, c *order.Customer) error {
	if c.Email != nil && *c.Email != "" {
		var existing models.CustomerModel
		err := tx.Where("email = ?", *c.Email).First(&existing).Error
		switch {
		case err == nil:
			c.BaseEntity = existing.BaseModel.ToDomain()
			updated := models.NewCustomerModel(c)
			updated.CreatedAt = existing.CreatedAt
			return tx.Save(updated).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			// fall through to create
		default:
			return err
		}
	}
	return tx.Create(models.NewCustomerModel(c)).Error
}

func (r *OrderRepository) findOrCreateLocalInfo(tx *gorm.DB, l *order.LocalInfo) error {
	var existing models.LocalInfoModel
	err := tx.Where("platform_key = ?", l.PlatformKey).First(&existing).Error
	switch {
	case err == nil:
		*l = *existing.ToDomain()
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx.Create(models.NewLocalInfoModel(l)).Error
	default:
		return err
	}
}

func (r *OrderRepository) findOrCreatePlatformRestaurant(tx *gorm.DB, p *order.PlatformRestaurant) error {
	var existing models.PlatformRestaurantModel
	err := tx.Where("platform_id = ?", p.PlatformID).First(&existing).Error
	switch {
	case err == nil:
		*p = *existing.ToDomain()
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx.Create(models.NewPlatformRestaurantModel(p)).Error
	default:
		return err
	}
}

func (r *OrderRepository) insertProduct(tx *gorm.DB, p *order.Product, orderID uuid.UUID) error {
	p.OrderID = orderID
	if err := tx.Create(models.NewProductModel(p, orderID)).Error; err != nil {
		return err
	}
	if err := r.insertToppings(tx, p.Toppings, p.ID, nil); err != nil {
		return err
	}
	for i := range p.Discounts {
		p.Discounts[i].ProductID = &p.ID
		if err := r.insertDiscount(tx, &p.Discounts[i]); err != nil {
			return err
		}
	}
	return nil
}

// insertToppings walks the topping tree depth-first, parents before
// children so the parent ID is always resolvable.
func (r *OrderRepository) insertToppings(tx *gorm.DB, toppings []order.Topping, productID uuid.UUID, parentID *uuid.UUID) error {
	for i := range toppings {
		t := &toppings[i]
		t.ProductID = productID
		t.ParentID = parentID
		if err := tx.Create(models.NewToppingModel(t, productID, parentID)).Error; err != nil {
			return err
		}
		for j := range t.Discounts {
			t.Discounts[j].ToppingID = &t.ID
			if err := r.insertDiscount(tx, &t.Discounts[j]); err != nil {
				return err
			}
		}
		if err := r.insertToppings(tx, t.Children, productID, &t.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) insertDiscount(tx *gorm.DB, d *order.Discount) error {
	if err := tx.Create(models.NewDiscountModel(d)).Error; err != nil {
		return err
	}
	for i := range d.Sponsorships {
		d.Sponsorships[i].DiscountID = d.ID
		if err := tx.Create(models.NewSponsorshipModel(&d.Sponsorships[i], d.ID)).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByToken loads the full order graph for a token.
func (r *OrderRepository) FindByToken(ctx context.Context, token string) (*order.Order, error) {
	var m models.OrderModel
	err := r.db.DB.WithContext(ctx).Where("token = ?", token).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return r.loadGraph(ctx, &m)
}

// FindByReference matches token, code or short code, first match wins.
func (r *OrderRepository) FindByReference(ctx context.Context, ref string) (*order.Order, error) {
	var m models.OrderModel
	err := r.db.DB.WithContext(ctx).
		Where("token = ? OR code = ? OR short_code = ?", ref, ref, ref).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return r.loadGraph(ctx, &m)
}

// ExistsByToken reports whether an order with the token is already stored.
func (r *OrderRepository) ExistsByToken(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("token = ?", token).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatus sets the order status by token.
func (r *OrderRepository) UpdateStatus(ctx context.Context, token string, status string) error {
	result := r.db.DB.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("token = ?", token).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// UpdateParameters replaces the order's parameter map.
func (r *OrderRepository) UpdateParameters(ctx context.Context, id uuid.UUID, params map[string]string) error {
	result := r.db.DB.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", id).
		Update("parameters", models.MarshalParameters(params))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// loadGraph attaches every relation to the order row.
func (r *OrderRepository) loadGraph(ctx context.Context, m *models.OrderModel) (*order.Order, error) {
	db := r.db.DB.WithContext(ctx)
	o := m.ToDomain()

	var customer models.CustomerModel
	if err := db.First(&customer, "id = ?", m.CustomerID).Error; err != nil {
		return nil, fmt.Errorf("customer: %w", err)
	}
	o.Customer = customer.ToDomain()

	var payment models.PaymentModel
	if err := db.First(&payment, "id = ?", m.PaymentID).Error; err != nil {
		return nil, fmt.Errorf("payment: %w", err)
	}
	o.Payment = payment.ToDomain()

	var price models.PriceModel
	if err := db.First(&price, "id = ?", m.PriceID).Error; err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	o.Price = price.ToDomain()

	var localInfo models.LocalInfoModel
	if err := db.First(&localInfo, "id = ?", m.LocalInfoID).Error; err != nil {
		return nil, fmt.Errorf("local info: %w", err)
	}
	o.LocalInfo = localInfo.ToDomain()

	var restaurant models.PlatformRestaurantModel
	if err := db.First(&restaurant, "id = ?", m.PlatformRestaurantID).Error; err != nil {
		return nil, fmt.Errorf("platform restaurant: %w", err)
	}
	o.PlatformRestaurant = restaurant.ToDomain()

	var delivery models.DeliveryModel
	err := db.Where("order_id = ?", m.ID).First(&delivery).Error
	switch {
	case err == nil:
		o.Delivery = delivery.ToDomain()
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("delivery: %w", err)
	}

	var pickup models.PickupModel
	err = db.Where("order_id = ?", m.ID).First(&pickup).Error
	switch {
	case err == nil:
		o.Pickup = pickup.ToDomain()
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("pickup: %w", err)
	}

	if err := r.loadProducts(db, o); err != nil {
		return nil, err
	}

	orderDiscounts, err := r.loadDiscounts(db, "order_id = ?", m.ID)
	if err != nil {
		return nil, fmt.Errorf("order discounts: %w", err)
	}
	o.Discounts = orderDiscounts

	var fees []models.DeliveryFeeModel
	if err := db.Where("order_id = ?", m.ID).Order("created_at").Find(&fees).Error; err != nil {
		return nil, fmt.Errorf("delivery fees: %w", err)
	}
	for i := range fees {
		o.DeliveryFees = append(o.DeliveryFees, *fees[i].ToDomain())
	}

	return o, nil
}

func (r *OrderRepository) loadProducts(db *gorm.DB, o *order.Order) error {
	var productRows []models.ProductModel
	if err := db.Where("order_id = ?", o.ID).Order("created_at").Find(&productRows).Error; err != nil {
		return fmt.Errorf("products: %w", err)
	}

	for i := range productRows {
		p := productRows[i].ToDomain()

		var toppingRows []models.ToppingModel
		if err := db.Where("product_id = ?", p.ID).Order("created_at").Find(&toppingRows).Error; err != nil {
			return fmt.Errorf("toppings: %w", err)
		}
		toppings, err := r.assembleToppings(db, toppingRows)
		if err != nil {
			return err
		}
		p.Toppings = toppings

		discounts, err := r.loadDiscounts(db, "product_id = ?", p.ID)
		if err != nil {
			return fmt.Errorf("product discounts: %w", err)
		}
		p.Discounts = discounts

		o.Products = append(o.Products, *p)
	}
	return nil
}

// assembleToppings rebuilds the topping tree from its flat rows.
func (r *OrderRepository) assembleToppings(db *gorm.DB, rows []models.ToppingModel) ([]order.Topping, error) {
	byParent := make(map[uuid.UUID][]*models.ToppingModel)
	for i := range rows {
		key := uuid.Nil
		if rows[i].ParentID != nil {
			key = *rows[i].ParentID
		}
		byParent[key] = append(byParent[key], &rows[i])
	}

	var build func(parent uuid.UUID) ([]order.Topping, error)
	build = func(parent uuid.UUID) ([]order.Topping, error) {
		var out []order.Topping
		for _, row := range byParent[parent] {
			t := row.ToDomain()

			discounts, err := r.loadDiscounts(db, "topping_id = ?", t.ID)
			if err != nil {
				return nil, fmt.Errorf("topping discounts: %w", err)
			}
			t.Discounts = discounts

			children, err := build(t.ID)
			if err != nil {
				return nil, err
			}
			t.Children = children

			out = append(out, *t)
		}
		return out, nil
	}

	return build(uuid.Nil)
}

func (r *OrderRepository) loadDiscounts(db *gorm.DB, cond string, arg any) ([]order.Discount, error) {
	var rows []models.DiscountModel
	if err := db.Where(cond, arg).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}

	var out []order.Discount
	for i := range rows {
		d := rows[i].ToDomain()

		var sponsorRows []models.SponsorshipModel
		if err := db.Where("discount_id = ?", d.ID).Order("created_at").Find(&sponsorRows).Error; err != nil {
			return nil, fmt.Errorf("sponsorships: %w", err)
		}
		for j := range sponsorRows {
			d.Sponsorships = append(d.Sponsorships, *sponsorRows[j].ToDomain())
		}

		out = append(out, *d)
	}
	return out, nil
}
