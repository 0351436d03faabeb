package ordersync

import (
	"fmt"
	"strings"

	"github.com/tournevent/shiplite/internal/domain"
	"github.com/tournevent/shiplite/pkg/storefront"
)

const guestName = "Guest"

// MapOrder converts a storefront order into the local model. The address is
// taken from the shipping address only; absent parts become empty strings.
func MapOrder(tenantID string, o storefront.Order) (domain.Order, error) {
	externalID := storefront.NormalizeID(o.ID)
	if externalID == "" {
		return domain.Order{}, fmt.Errorf("%w: storefront order %q has no id", domain.ErrInvalidOrder, o.Name)
	}

	items := make([]domain.LineItem, 0, len(o.LineItems))
	var computedGrams int64
	for _, li := range o.LineItems {
		items = append(items, domain.LineItem{
			Name:     li.Name,
			SKU:      li.SKU,
			Quantity: li.Quantity,
			Grams:    li.Grams,
			Price:    li.Price,
		})
		// grams is per unit
		computedGrams += li.Grams * int64(li.Quantity)
	}

	weight := o.TotalWeight
	if weight == 0 {
		weight = computedGrams
	}

	email := o.Email
	if email == "" && o.Customer != nil {
		email = o.Customer.Email
	}

	var addr domain.Address
	phone := o.Phone
	if sa := o.ShippingAddress; sa != nil {
		addr = domain.Address{
			Line1:   sa.Address1,
			Line2:   sa.Address2,
			City:    sa.City,
			State:   sa.Province,
			Zip:     sa.Zip,
			Country: sa.Country,
		}
		if sa.Phone != "" {
			phone = sa.Phone
		}
	}
	if phone == "" && o.Customer != nil {
		phone = o.Customer.Phone
	}

	return domain.Order{
		TenantID:        tenantID,
		ExternalID:      externalID,
		OrderNumber:     o.Name,
		Email:           email,
		FinancialStatus: o.FinancialStatus,
		TotalPrice:      o.TotalPrice,
		Currency:        o.Currency,
		Customer: domain.Customer{
			Name:    customerName(o),
			Email:   email,
			Phone:   phone,
			Address: addr,
		},
		LineItems:        items,
		TotalWeightGrams: weight,
		SourceCreatedAt:  o.CreatedAt.UTC(),
	}, nil
}

// customerName picks the first non-empty of shipping name, billing name and
// customer name, falling back to "Guest".
func customerName(o storefront.Order) string {
	for _, a := range []*storefront.Address{o.ShippingAddress, o.BillingAddress} {
		if a == nil {
			continue
		}
		if n := strings.TrimSpace(a.Name); n != "" {
			return n
		}
		if n := joinName(a.FirstName, a.LastName); n != "" {
			return n
		}
	}
	if o.Customer != nil {
		if n := joinName(o.Customer.FirstName, o.Customer.LastName); n != "" {
			return n
		}
	}
	return guestName
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
