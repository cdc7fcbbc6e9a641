package order

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dish is the menu service's view of a dish, including the recipe lines the
// ledger needs to reserve against.
type Dish struct {
	ID           uuid.UUID
	Name         string
	Price        decimal.Decimal
	Cost         decimal.Decimal
	Requirements []IngredientRequirement
}

type DishLookup interface {
	Dish(ctx context.Context, dishID uuid.UUID) (*Dish, error)
}

type StaffLookup interface {
	Exists(ctx context.Context, employeeID uuid.UUID) (bool, error)
}

// APIDishLookup resolves dishes through the menu service.
type APIDishLookup struct {
	client *apt.ServiceClient
	logger apt.Logger
}

func NewAPIDishLookup(config *apt.Config, logger apt.Logger) (*APIDishLookup, error) {
	menuURL, _ := config.GetString("services.menu.url")
	if menuURL == "" {
		return nil, fmt.Errorf("services.menu.url is required")
	}

	client := apt.NewServiceClient(menuURL)
	if client == nil {
		return nil, fmt.Errorf("failed to create menu service client")
	}

	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &APIDishLookup{client: client, logger: logger}, nil
}

func (l *APIDishLookup) Dish(ctx context.Context, dishID uuid.UUID) (*Dish, error) {
	resp, err := l.client.Get(ctx, "dishes", dishID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get dish: %w", err)
	}

	dishData, ok := resp.Data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid response format")
	}

	price, err := decimal.NewFromString(stringField(dishData, "price"))
	if err != nil {
		return nil, fmt.Errorf("invalid dish price: %w", err)
	}
	cost, err := decimal.NewFromString(stringField(dishData, "cost"))
	if err != nil {
		return nil, fmt.Errorf("invalid dish cost: %w", err)
	}

	dish := &Dish{
		ID:    dishID,
		Name:  stringField(dishData, "name"),
		Price: price,
		Cost:  cost,
	}

	requirements, _ := dishData["ingredient_requirements"].([]interface{})
	for _, raw := range requirements {
		reqData, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		ingredientID, err := uuid.Parse(stringField(reqData, "ingredient_id"))
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(stringField(reqData, "quantity"))
		if err != nil {
			continue
		}
		dish.Requirements = append(dish.Requirements, IngredientRequirement{
			IngredientID: ingredientID,
			Quantity:     qty,
		})
	}

	return dish, nil
}

// APIStaffLookup validates waiter references through the staff service.
type APIStaffLookup struct {
	client *apt.ServiceClient
	logger apt.Logger
}

func NewAPIStaffLookup(config *apt.Config, logger apt.Logger) (*APIStaffLookup, error) {
	staffURL, _ := config.GetString("services.staff.url")
	if staffURL == "" {
		return nil, fmt.Errorf("services.staff.url is required")
	}

	client := apt.NewServiceClient(staffURL)
	if client == nil {
		return nil, fmt.Errorf("failed to create staff service client")
	}

	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &APIStaffLookup{client: client, logger: logger}, nil
}

func (l *APIStaffLookup) Exists(ctx context.Context, employeeID uuid.UUID) (bool, error) {
	resp, err := l.client.Get(ctx, "employees", employeeID.String())
	if err != nil {
		l.logger.Debug("employee lookup failed", "employee_id", employeeID.String(), "error", err)
		return false, nil
	}

	employeeData, ok := resp.Data.(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("invalid response format")
	}

	return stringField(employeeData, "id") != "", nil
}

func stringField(data map[string]interface{}, key string) string {
	value, _ := data[key].(string)
	return value
}
