package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/posbridge/backend/internal/domain/order"
	"github.com/posbridge/backend/internal/domain/shared"
	"github.com/posbridge/backend/internal/infrastructure/persistence/models"
)

func setupOrderTestDB(t *testing.T) *OrderRepository {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	return NewOrderRepository(&Database{DB: db}, nil)
}

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testOrder(token string) *order.Order {
	riderPickup := time.Date(2026, 3, 1, 12, 20, 0, 0, time.UTC)
	toppingType := order.ToppingExtra

	return &order.Order{
		BaseEntity:     shared.NewBaseEntity(),
		Token:          token,
		Code:           "XK4D",
		ShortCode:      strPtr("42"),
		PlacedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ExpiryDate:     time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		ExpeditionType: order.ExpeditionDelivery,

		MaxPickupTimestamp:   time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
		PreparationIntervals: [][]int{{-10, -5}, {5, 10}},
		Parameters:           map[string]string{"channel": "app"},

		Callbacks: order.CallbackURLs{
			OrderAccepted: "https://platform.example/accept",
			OrderPrepared: "https://platform.example/prepared",
		},

		Customer: &order.Customer{
			BaseEntity: shared.NewBaseEntity(),
			Email:      strPtr("jane@example.com"),
			FirstName:  strPtr("Jane"),
			Flags:      []string{"vip"},
		},
		Payment: &order.Payment{
			BaseEntity: shared.NewBaseEntity(),
			Status:     order.PaymentPaid,
			Type:       "online",
		},
		Price: &order.Price{
			BaseEntity: shared.NewBaseEntity(),
			GrandTotal: decPtr("125.50"),
			TotalNet:   decPtr("110.00"),
			VATTotal:   decPtr("15.50"),
			VATVisible: true,
		},
		LocalInfo: &order.LocalInfo{
			BaseEntity:     shared.NewBaseEntity(),
			CountryCode:    "TR",
			CurrencySymbol: "TL",
			Platform:       "yemeksepeti",
			PlatformKey:    "TR_IST_001",
		},
		PlatformRestaurant: &order.PlatformRestaurant{
			BaseEntity: shared.NewBaseEntity(),
			PlatformID: "rest-789",
		},

		Delivery: &order.Delivery{
			BaseEntity:      shared.NewBaseEntity(),
			RiderPickupTime: &riderPickup,
			Address: order.Address{
				City:   strPtr("Istanbul"),
				Street: strPtr("Istiklal Cd."),
			},
		},

		Products: []order.Product{
			{
				BaseEntity: shared.NewBaseEntity(),
				Name:       strPtr("Burger"),
				Quantity:   "2",
				PaidPrice:  decPtr("50.00"),
				Toppings: []order.Topping{
					{
						BaseEntity: shared.NewBaseEntity(),
						Name:       "Cheese",
						Price:      decPtr("3.00"),
						Quantity:   1,
						Type:       &toppingType,
						Children: []order.Topping{
							{
								BaseEntity: shared.NewBaseEntity(),
								Name:       "Extra slice",
								Quantity:   2,
							},
						},
					},
				},
				Discounts: []order.Discount{
					{
						BaseEntity: shared.NewBaseEntity(),
						Name:       strPtr("combo"),
						Amount:     decPtr("5.00"),
						Sponsorships: []order.Sponsorship{
							{
								BaseEntity: shared.NewBaseEntity(),
								Sponsor:    order.SponsorVendor,
								Amount:     decPtr("5.00"),
							},
						},
					},
				},
			},
		},
		Discounts: []order.Discount{
			{
				BaseEntity: shared.NewBaseEntity(),
				Name:       strPtr("welcome"),
				Amount:     decPtr("10.00"),
			},
		},
		DeliveryFees: []order.DeliveryFee{
			{
				BaseEntity: shared.NewBaseEntity(),
				Name:       strPtr("service"),
				Value:      decPtr("5.00"),
			},
		},
	}
}

func TestOrderRepositoryCreateAndFindByToken(t *testing.T) {
	repo := setupOrderTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testOrder("order-token-1")))

	got, err := repo.FindByToken(ctx, "order-token-1")
	require.NoError(t, err)

	assert.Equal(t, "order-token-1", got.Token)
	assert.Equal(t, "XK4D", got.Code)
	require.NotNil(t, got.ShortCode)
	assert.Equal(t, "42", *got.ShortCode)
	assert.Equal(t, [][]int{{-10, -5}, {5, 10}}, got.PreparationIntervals)
	assert.Equal(t, map[string]string{"channel": "app"}, got.Parameters)
	assert.Equal(t, "https://platform.example/accept", got.Callbacks.OrderAccepted)

	require.NotNil(t, got.Customer)
	assert.Equal(t, []string{"vip"}, got.Customer.Flags)
	require.NotNil(t, got.Payment)
	assert.Equal(t, order.PaymentPaid, got.Payment.Status)
	require.NotNil(t, got.Price)
	require.NotNil(t, got.Price.GrandTotal)
	assert.True(t, got.Price.GrandTotal.Equal(decimal.RequireFromString("125.50")))
	assert.Nil(t, got.Price.RiderTip)
	require.NotNil(t, got.LocalInfo)
	assert.Equal(t, "TR_IST_001", got.LocalInfo.PlatformKey)
	require.NotNil(t, got.PlatformRestaurant)
	assert.Equal(t, "rest-789", got.PlatformRestaurant.PlatformID)

	require.NotNil(t, got.Delivery)
	require.NotNil(t, got.Delivery.RiderPickupTime)
	require.NotNil(t, got.Delivery.Address.City)
	assert.Equal(t, "Istanbul", *got.Delivery.Address.City)
	assert.Nil(t, got.Pickup)

	require.Len(t, got.Products, 1)
	product := got.Products[0]
	assert.Equal(t, "2", product.Quantity)
	require.Len(t, product.Toppings, 1)
	cheese := product.Toppings[0]
	assert.Equal(t, "Cheese", cheese.Name)
	require.NotNil(t, cheese.Type)
	assert.Equal(t, order.ToppingExtra, *cheese.Type)
	require.Len(t, cheese.Children, 1)
	assert.Equal(t, "Extra slice", cheese.Children[0].Name)
	assert.Equal(t, 2, cheese.Children[0].Quantity)

	require.Len(t, product.Discounts, 1)
	require.Len(t, product.Discounts[0].Sponsorships, 1)
	assert.Equal(t, order.SponsorVendor, product.Discounts[0].Sponsorships[0].Sponsor)

	require.Len(t, got.Discounts, 1)
	require.NotNil(t, got.Discounts[0].Name)
	assert.Equal(t, "welcome", *got.Discounts[0].Name)

	require.Len(t, got.DeliveryFees, 1)
	require.NotNil(t, got.DeliveryFees[0].Value)
	assert.True(t, got.DeliveryFees[0].Value.Equal(decimal.RequireFromString("5.00")))
}

func TestOrderRepositoryDuplicateToken(t *testing.T) {
	repo := setupOrderTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testOrder("order-token-1")))

	err := repo.Create(ctx, testOrder("order-token-1"))
	assert.ErrorIs(t, err, order.ErrDuplicateOrder)
}

func TestOrderRepositoryCustomerDeduplicatedByEmail(t *testing.T) {
	repo := setupOrderTestDB(t)
	ctx := context.Background()

	first := testOrder("order-token-1")
	require.NoError(t, repo.Create(ctx, first))

	second := testOrder("order-token-2")
	second.Customer.FirstName = strPtr("Janet")
	require.NoError(t, repo.Create(ctx, second))

	assert.Equal(t, first.Customer.ID, second.Customer.ID)

	got, err := repo.FindByToken(ctx, "order-token-2")
	require.NoError(t, err)
	require.NotNil(t, got.Customer.FirstName)
	assert.Equal(t, "Janet", *got.Customer.FirstName)
}

func TestOrderRepositorySharedEntitiesReused(t *testing.T) {
	repo := setupOrderTestDB(t)
	ctx := context.Background()

	first := testOrder("order-token-1")
	require.NoError(t, repo.Create(ctx, first))

	second := testOrder("order-token-2")
	require.NoError(t, repo.Create(ctx, second))

	assert.Equal(t, first.LocalInfo.ID, second.LocalInfo.ID)
	assert.Equal(t, first.PlatformRestaurant.ID, second.PlatformRestaurant.ID)

	// Payment and price are order-exclusive
	assert.NotEqual(t, first.Payment.ID, second.Payment.ID)
	assert.NotEqual(t, first.Price.ID, second.Price.ID)
}

func TestOrderRepositoryFindByReference(t *testing.T) {
	repo := setupOrderTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testOrder("order-token-1")))

	byToken, err := repo.FindByReference(ctx, "order-token-1")
	require.NoError(t, err)
	assert.Equal(t, "order-token-1", byToken.Token)

	byCode, err := repo.FindByReference(ctx, "XK4D")
	require.NoError(t, err)
	assert.Equal(t, "order-token-1", byCode.Token)

	byShortCode, err := repo.FindByReference(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "order-token-1", byShortCode.Token)

	_, err = repo.FindByReference(ctx, "nope")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestOrderRepositoryExistsByToken(t *testing.T) {
	repo := setupOrderTestDB(t)
	ctx := context.Background()

	exists, err := repo.ExistsByToken(ctx, "order-token-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Create(ctx, testOrder("order-token-1")))

	exists, err = repo.ExistsByToken(ctx, "order-token-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOrderRepositoryUpdateStatus(t *testing.T) {
	repo := setupOrderTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testOrder("order-token-1")))

	require.NoError(t, repo.UpdateStatus(ctx, "order-token-1", "order_accepted"))

	got, err := repo.FindByToken(ctx, "order-token-1")
	require.NoError(t, err)
	assert.Equal(t, "order_accepted", got.Status)

	err = repo.UpdateStatus(ctx, "missing", "order_accepted")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestOrderRepositoryUpdateParameters(t *testing.T) {
	repo := setupOrderTestDB(t)
	ctx := context.Background()

	o := testOrder("order-token-1")
	require.NoError(t, repo.Create(ctx, o))

	params := map[string]string{
		"channel":          "app",
		"posStatus":        "PREPARING",
		"lastStatusUpdate": "2026-03-01T12:05:00Z",
	}
	require.NoError(t, repo.UpdateParameters(ctx, o.ID, params))

	got, err := repo.FindByToken(ctx, "order-token-1")
	require.NoError(t, err)
	assert.Equal(t, params, got.Parameters)
}
