// Package cart keeps each customer's cart and its price snapshots consistent
// with a price table that may change between add-to-cart and checkout.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/coupon"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/events"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/order"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricetable"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricing"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/siteconfig"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/logging"
)

var (
	ErrValidation         = errors.New("validation")
	ErrNotFound           = errors.New("not found")
	ErrPricingUnavailable = errors.New("pricing unavailable")
	ErrCheckoutBlocked    = errors.New("checkout blocked")
	ErrEmptyCart          = errors.New("empty cart")
	ErrTableChanged       = errors.New("active price table changed")
)

// MaxQuantity bounds a single line.
const MaxQuantity = 999

// Key identifies a line for merging: adding the same key twice bumps the
// quantity instead of creating a second line.
type Key struct {
	ProductID uuid.UUID
	FabricID  uuid.UUID
	MeasureCM int
	Side      models.Side
}

type AddRequest struct {
	ProductID uuid.UUID   `json:"product_id"`
	FabricID  uuid.UUID   `json:"fabric_id"`
	MeasureCM int         `json:"measure_cm"`
	Side      models.Side `json:"side"`
	Quantity  int         `json:"quantity"`
}

type Snapshot struct {
	UnitPrice         decimal.Decimal `json:"unit_price"`
	UnitPriceOriginal decimal.Decimal `json:"unit_price_original"`
	DiscountPercent   decimal.Decimal `json:"discount_percent"`
}

func snapshotOf(ln models.CartLine) Snapshot {
	return Snapshot{UnitPrice: ln.UnitPrice, UnitPriceOriginal: ln.UnitPriceOriginal, DiscountPercent: ln.DiscountPercent}
}

const (
	ActionUpdated = "updated"
	ActionRemoved = "removed"
)

type Change struct {
	LineID    uuid.UUID   `json:"line_id"`
	ProductID uuid.UUID   `json:"product_id"`
	FabricID  uuid.UUID   `json:"fabric_id"`
	MeasureCM int         `json:"measure_cm"`
	Side      models.Side `json:"side,omitempty"`
	Action    string      `json:"action"`
	Before    Snapshot    `json:"before"`
	After     *Snapshot   `json:"after,omitempty"`
}

// Report describes what a revalidation changed.
type Report struct {
	Updated int      `json:"updated"`
	Removed int      `json:"removed"`
	Changes []Change `json:"changes"`
}

type Engine struct {
	Repo    *GormRepo
	Pricing *pricing.Service
	Catalog *catalog.GormRepo
	Coupons *coupon.GormRepo
	Orders  *order.GormRepo
	Events  events.Publisher
}

// txEngine is the engine with every repository bound to one transaction.
type txEngine struct {
	repo    *GormRepo
	pricing *pricing.Service
	catalog *catalog.GormRepo
	coupons *coupon.GormRepo
	orders  *order.GormRepo
	tables  *pricetable.GormRepo
	site    *siteconfig.GormRepo
}

func (e *Engine) inTx(ctx context.Context, fn func(t *txEngine) error) error {
	return e.Repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prices := e.Pricing.WithTx(tx)
		return fn(&txEngine{
			repo:    e.Repo.WithTx(tx),
			pricing: prices,
			catalog: e.Catalog.WithTx(tx),
			coupons: e.Coupons.WithTx(tx),
			orders:  e.Orders.WithTx(tx),
			tables:  prices.Tables,
			site:    prices.Site,
		})
	})
}

func (e *Engine) publish(ctx context.Context, topic, key string, event any) {
	if e.Events == nil {
		return
	}
	if err := e.Events.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "topic", topic, "error", err)
	}
}

func (e *Engine) Add(ctx context.Context, tableID, customerID uuid.UUID, req AddRequest) (*models.CartLine, error) {
	l := logging.FromContext(ctx).With("svc", "cart.add")

	req.Side = models.Side(strings.ToUpper(strings.TrimSpace(string(req.Side))))
	if err := validateAdd(customerID, req); err != nil {
		return nil, err
	}

	var line models.CartLine
	err := e.inTx(ctx, func(t *txEngine) error {
		product, err := t.catalog.GetProduct(ctx, req.ProductID)
		if err != nil {
			return mapCatalogErr(err)
		}
		if product.SideRequired && !req.Side.Valid() {
			return fmt.Errorf("side must be %s or %s: %w", models.SideLeft, models.SideRight, ErrValidation)
		}
		if !product.SideRequired && req.Side != models.SideNone {
			return fmt.Errorf("product has no side: %w", ErrValidation)
		}
		if _, err := t.catalog.GetFabric(ctx, req.FabricID); err != nil {
			return mapCatalogErr(err)
		}
		offered, err := t.catalog.FabricOffered(ctx, req.ProductID, req.FabricID)
		if err != nil {
			return err
		}
		if !offered {
			return fmt.Errorf("fabric %s is not offered for product %s: %w", req.FabricID, req.ProductID, ErrValidation)
		}

		q, err := t.pricing.Resolve(ctx, tableID, req.ProductID, req.FabricID, req.MeasureCM)
		if err != nil {
			return mapPricingErr(err)
		}
		if !q.Available {
			return fmt.Errorf("%s/%dcm in %s: %w", req.ProductID, req.MeasureCM, q.Grade, ErrPricingUnavailable)
		}

		cart, err := t.repo.LockCart(ctx, customerID)
		if err != nil {
			return err
		}

		key := Key{ProductID: req.ProductID, FabricID: req.FabricID, MeasureCM: req.MeasureCM, Side: req.Side}
		existing, err := t.repo.FindLine(ctx, cart.ID, key)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Quantity > MaxQuantity-req.Quantity {
				return fmt.Errorf("quantity above %d: %w", MaxQuantity, ErrValidation)
			}
			existing.Quantity += req.Quantity
			applyQuote(existing, q)
			existing.Updated = false
			line = *existing
			return t.repo.SaveSnapshot(ctx, &line)
		}

		pos, err := t.repo.NextPosition(ctx, cart.ID)
		if err != nil {
			return err
		}
		line = models.CartLine{
			CartID:    cart.ID,
			ProductID: req.ProductID,
			FabricID:  req.FabricID,
			MeasureCM: req.MeasureCM,
			Side:      req.Side,
			Quantity:  req.Quantity,
			Position:  pos,
		}
		applyQuote(&line, q)
		return t.repo.CreateLine(ctx, &line)
	})
	if err != nil {
		return nil, err
	}

	l.Info("line added", "customer_id", customerID, "line_id", line.ID, "quantity", line.Quantity)
	e.publish(ctx, events.TopicCart, customerID.String(), events.CartEvent{
		Type: events.CartLineAdded, CustomerID: customerID, LineID: line.ID,
		ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice,
	})
	return &line, nil
}

func validateAdd(customerID uuid.UUID, req AddRequest) error {
	switch {
	case customerID == uuid.Nil:
		return fmt.Errorf("customer required: %w", ErrValidation)
	case req.ProductID == uuid.Nil:
		return fmt.Errorf("product_id required: %w", ErrValidation)
	case req.FabricID == uuid.Nil:
		return fmt.Errorf("fabric_id required: %w", ErrValidation)
	case req.MeasureCM <= 0:
		return fmt.Errorf("measure_cm required: %w", ErrValidation)
	case req.Quantity < 1:
		return fmt.Errorf("quantity must be at least 1: %w", ErrValidation)
	case req.Quantity > MaxQuantity:
		return fmt.Errorf("quantity above %d: %w", MaxQuantity, ErrValidation)
	case req.Side != models.SideNone && !req.Side.Valid():
		return fmt.Errorf("side %q: %w", req.Side, ErrValidation)
	}
	return nil
}

func applyQuote(ln *models.CartLine, q pricing.Quote) {
	ln.UnitPrice = q.UnitPrice
	ln.UnitPriceOriginal = q.UnitPriceOriginal
	ln.DiscountPercent = q.DiscountPercent
}

// UpdateQuantity sets the line quantity, clamped to 1..MaxQuantity. The price
// snapshot is left as is.
func (e *Engine) UpdateQuantity(ctx context.Context, customerID, lineID uuid.UUID, qty int) (*models.CartLine, error) {
	qty = min(max(qty, 1), MaxQuantity)

	var line *models.CartLine
	err := e.inTx(ctx, func(t *txEngine) error {
		cart, err := t.repo.FindCart(ctx, customerID, true)
		if err != nil {
			return err
		}
		if cart == nil {
			return fmt.Errorf("line %s: %w", lineID, ErrNotFound)
		}
		ok, err := t.repo.SetQuantity(ctx, cart.ID, lineID, qty)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("line %s: %w", lineID, ErrNotFound)
		}
		line, err = t.repo.GetLine(ctx, cart.ID, lineID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.TopicCart, customerID.String(), events.CartEvent{
		Type: events.CartLineUpdated, CustomerID: customerID, LineID: lineID, ProductID: line.ProductID, Quantity: qty,
	})
	return line, nil
}

func (e *Engine) Remove(ctx context.Context, customerID, lineID uuid.UUID) error {
	err := e.inTx(ctx, func(t *txEngine) error {
		cart, err := t.repo.FindCart(ctx, customerID, true)
		if err != nil {
			return err
		}
		if cart == nil {
			return fmt.Errorf("line %s: %w", lineID, ErrNotFound)
		}
		ok, err := t.repo.DeleteLine(ctx, cart.ID, lineID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("line %s: %w", lineID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.publish(ctx, events.TopicCart, customerID.String(), events.CartEvent{
		Type: events.CartLineRemoved, CustomerID: customerID, LineID: lineID,
	})
	return nil
}

// AttachCoupon stores the code on the cart. The discount itself is computed
// with the totals.
func (e *Engine) AttachCoupon(ctx context.Context, customerID uuid.UUID, code string) (*models.Coupon, error) {
	code = coupon.NormalizeCode(code)
	if code == "" || customerID == uuid.Nil {
		return nil, fmt.Errorf("coupon code required: %w", ErrValidation)
	}

	var c *models.Coupon
	err := e.inTx(ctx, func(t *txEngine) error {
		var err error
		c, err = t.coupons.GetByCode(ctx, code)
		if errors.Is(err, coupon.ErrNotFound) {
			return fmt.Errorf("coupon %q: %w", code, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if !c.Active {
			return fmt.Errorf("coupon %q is inactive: %w", code, ErrValidation)
		}
		cart, err := t.repo.LockCart(ctx, customerID)
		if err != nil {
			return err
		}
		return t.repo.SetCoupon(ctx, cart.ID, &c.Code)
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.TopicCart, customerID.String(), events.CartEvent{
		Type: events.CartCouponAttached, CustomerID: customerID, CouponCode: c.Code,
	})
	return c, nil
}

func (e *Engine) DetachCoupon(ctx context.Context, customerID uuid.UUID) error {
	detached := false
	err := e.inTx(ctx, func(t *txEngine) error {
		cart, err := t.repo.FindCart(ctx, customerID, true)
		if err != nil || cart == nil || cart.CouponCode == nil {
			return err
		}
		detached = true
		return t.repo.SetCoupon(ctx, cart.ID, nil)
	})
	if err != nil {
		return err
	}

	if detached {
		e.publish(ctx, events.TopicCart, customerID.String(), events.CartEvent{
			Type: events.CartCouponDetached, CustomerID: customerID,
		})
	}
	return nil
}

// Revalidate re-prices every line against tableID. Lines whose price moved get
// the new snapshot and the updated flag; lines that can no longer be priced
// are dropped. Running it twice in a row changes nothing the second time.
func (e *Engine) Revalidate(ctx context.Context, tableID, customerID uuid.UUID) (Report, error) {
	report := Report{Changes: []Change{}}
	err := e.inTx(ctx, func(t *txEngine) error {
		cart, err := t.repo.FindCart(ctx, customerID, true)
		if err != nil || cart == nil {
			return err
		}
		report, err = t.revalidate(ctx, tableID, cart)
		return err
	})
	if err != nil {
		return Report{}, err
	}

	if report.Updated+report.Removed > 0 {
		logging.FromContext(ctx).With("svc", "cart.revalidate").Info("cart revalidated",
			"customer_id", customerID, "updated", report.Updated, "removed", report.Removed)
		e.publish(ctx, events.TopicCart, customerID.String(), events.CartEvent{
			Type: events.CartRevalidated, CustomerID: customerID, Updated: report.Updated, Removed: report.Removed,
		})
	}
	return report, nil
}

func (t *txEngine) revalidate(ctx context.Context, tableID uuid.UUID, cart *models.Cart) (Report, error) {
	report := Report{Changes: []Change{}}

	lines, err := t.repo.Lines(ctx, cart.ID)
	if err != nil {
		return report, err
	}

	for i := range lines {
		ln := lines[i]
		q, err := t.pricing.Resolve(ctx, tableID, ln.ProductID, ln.FabricID, ln.MeasureCM)
		if errors.Is(err, pricing.ErrNotFound) {
			q = pricing.Quote{}
		} else if err != nil {
			return report, err
		}

		change := Change{
			LineID: ln.ID, ProductID: ln.ProductID, FabricID: ln.FabricID,
			MeasureCM: ln.MeasureCM, Side: ln.Side, Before: snapshotOf(ln),
		}

		if !q.Available {
			if _, err := t.repo.DeleteLine(ctx, cart.ID, ln.ID); err != nil {
				return report, err
			}
			change.Action = ActionRemoved
			report.Removed++
			report.Changes = append(report.Changes, change)
			continue
		}

		if q.SamePrice(ln.UnitPrice, ln.UnitPriceOriginal, ln.DiscountPercent) {
			continue
		}

		applyQuote(&ln, q)
		ln.Updated = true
		if err := t.repo.SaveSnapshot(ctx, &ln); err != nil {
			return report, err
		}
		after := snapshotOf(ln)
		change.Action = ActionUpdated
		change.After = &after
		report.Updated++
		report.Changes = append(report.Changes, change)
	}
	return report, nil
}

// Totals returns the cart with its lines and the computed totals. A customer
// without a cart gets an empty one that is not persisted.
func (e *Engine) Totals(ctx context.Context, customerID uuid.UUID) (*models.Cart, Totals, error) {
	var (
		cart   *models.Cart
		totals Totals
	)
	err := e.inTx(ctx, func(t *txEngine) error {
		var err error
		cart, err = t.repo.FindCart(ctx, customerID, true)
		if err != nil {
			return err
		}
		if cart == nil {
			cart = &models.Cart{CustomerID: customerID, CouponDiscount: decimal.Zero, Lines: []models.CartLine{}}
			totals = ComputeTotals(nil, "", nil)
			return nil
		}

		cart.Lines, err = t.repo.Lines(ctx, cart.ID)
		if err != nil {
			return err
		}
		code, c, err := t.cartCoupon(ctx, cart)
		if err != nil {
			return err
		}
		totals = ComputeTotals(cart.Lines, code, c)

		if !cart.CouponDiscount.Equal(totals.CouponDiscount) {
			cart.CouponDiscount = totals.CouponDiscount
			return t.repo.SetCouponDiscount(ctx, cart.ID, totals.CouponDiscount)
		}
		return nil
	})
	if err != nil {
		return nil, Totals{}, err
	}
	return cart, totals, nil
}

func (t *txEngine) cartCoupon(ctx context.Context, cart *models.Cart) (string, *models.Coupon, error) {
	if cart.CouponCode == nil || *cart.CouponCode == "" {
		return "", nil, nil
	}
	code := *cart.CouponCode
	c, err := t.coupons.GetByCode(ctx, code)
	if errors.Is(err, coupon.ErrNotFound) {
		return code, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return code, c, nil
}

// Checkout revalidates the cart and turns it into an order awaiting approval,
// all in one transaction. When revalidation drops a line the corrections are
// committed but no order is created, so the customer can review the cart.
// The table row is share-locked until commit, so row edits and activations
// wait for the checkout.
func (e *Engine) Checkout(ctx context.Context, tableID, customerID uuid.UUID) (*models.Order, Report, error) {
	return e.checkout(ctx, customerID, func(t *txEngine) (uuid.UUID, error) {
		if _, err := t.tables.LockShared(ctx, tableID); err != nil {
			return uuid.Nil, mapTableErr(err)
		}
		return tableID, nil
	})
}

// CheckoutActive is Checkout against the table that is active inside the
// checkout transaction.
func (e *Engine) CheckoutActive(ctx context.Context, customerID uuid.UUID) (*models.Order, Report, error) {
	return e.checkout(ctx, customerID, func(t *txEngine) (uuid.UUID, error) {
		return t.lockActiveTable(ctx)
	})
}

// lockActiveTable reads the active table id and share-locks that table. An
// activation committing in between leaves the locked row inactive; the id is
// then read once more.
func (t *txEngine) lockActiveTable(ctx context.Context) (uuid.UUID, error) {
	for range 2 {
		id, err := t.site.ActiveTableID(ctx)
		if err != nil {
			return uuid.Nil, err
		}
		tbl, err := t.tables.LockShared(ctx, id)
		if err != nil {
			return uuid.Nil, mapTableErr(err)
		}
		if tbl.Active {
			return id, nil
		}
	}
	return uuid.Nil, ErrTableChanged
}

func (e *Engine) checkout(ctx context.Context, customerID uuid.UUID, lockTable func(t *txEngine) (uuid.UUID, error)) (*models.Order, Report, error) {
	l := logging.FromContext(ctx).With("svc", "cart.checkout")

	var (
		placed  *models.Order
		report  = Report{Changes: []Change{}}
		blocked bool
	)
	err := e.inTx(ctx, func(t *txEngine) error {
		cart, err := t.repo.FindCart(ctx, customerID, true)
		if err != nil {
			return err
		}
		if cart == nil {
			return ErrEmptyCart
		}
		lines, err := t.repo.Lines(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		tableID, err := lockTable(t)
		if err != nil {
			return err
		}
		report, err = t.revalidate(ctx, tableID, cart)
		if err != nil {
			return err
		}
		if report.Removed > 0 {
			blocked = true
			return nil
		}

		lines, err = t.repo.Lines(ctx, cart.ID)
		if err != nil {
			return err
		}
		code, c, err := t.cartCoupon(ctx, cart)
		if err != nil {
			return err
		}
		totals := ComputeTotals(lines, code, c)

		placed = &models.Order{
			CustomerID:     customerID,
			PriceTableID:   tableID,
			Status:         models.OrderAwaitingApproval,
			Subtotal:       totals.Subtotal,
			ItemDiscount:   totals.ItemDiscount,
			CouponDiscount: totals.CouponDiscount,
			Total:          totals.GrandTotal,
			Items:          make([]models.OrderItem, 0, len(lines)),
		}
		if totals.CouponApplied {
			placed.CouponCode = &code
		}
		for _, ln := range lines {
			placed.Items = append(placed.Items, models.OrderItem{
				ProductID:         ln.ProductID,
				FabricID:          ln.FabricID,
				MeasureCM:         ln.MeasureCM,
				Side:              ln.Side,
				Quantity:          ln.Quantity,
				UnitPrice:         ln.UnitPrice,
				UnitPriceOriginal: ln.UnitPriceOriginal,
				DiscountPercent:   ln.DiscountPercent,
			})
		}
		if err := t.orders.Create(ctx, placed); err != nil {
			return err
		}
		if err := t.repo.ClearLines(ctx, cart.ID); err != nil {
			return err
		}
		return t.repo.SetCoupon(ctx, cart.ID, nil)
	})
	if err != nil {
		return nil, report, err
	}

	if blocked {
		l.Warn("checkout blocked", "customer_id", customerID, "removed", report.Removed)
		e.publish(ctx, events.TopicCart, customerID.String(), events.CartEvent{
			Type: events.CartRevalidated, CustomerID: customerID, Updated: report.Updated, Removed: report.Removed,
		})
		return nil, report, fmt.Errorf("%d line(s) no longer available: %w", report.Removed, ErrCheckoutBlocked)
	}

	l.Info("order placed", "customer_id", customerID, "order_id", placed.ID, "total", placed.Total.StringFixed(2))
	e.publish(ctx, events.TopicOrder, placed.ID.String(), events.OrderEvent{
		Type: events.OrderPlaced, OrderID: placed.ID, CustomerID: customerID,
		Items: len(placed.Items), Total: placed.Total, Status: placed.Status,
	})
	return placed, report, nil
}

func mapCatalogErr(err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	return err
}

func mapTableErr(err error) error {
	if errors.Is(err, pricetable.ErrNotFound) {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	return err
}

func mapPricingErr(err error) error {
	if errors.Is(err, pricing.ErrNotFound) {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	return err
}
