package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wichananm65/storefront-backend/internal/apperr"
	"github.com/wichananm65/storefront-backend/internal/catalog"
	"github.com/wichananm65/storefront-backend/internal/logging"
	"github.com/wichananm65/storefront-backend/internal/pricing"
)

// Service orchestrates cart operations against the catalog.
type Service struct {
	repo     Repository
	products catalog.Reader
	log      *zap.Logger
}

func NewService(repo Repository, products catalog.Reader, log *zap.Logger) *Service {
	return &Service{repo: repo, products: products, log: logging.OrNop(log)}
}

// AddLine adds qty units of a product, or of one of its variants when
// variantID is set. Stock is not checked here; Validate does that.
func (s *Service) AddLine(ctx context.Context, key Key, productID int64, qty int, variantID string) (View, error) {
	if err := checkKey(key); err != nil {
		return View{}, err
	}
	if err := checkAdd(productID, qty); err != nil {
		return View{}, err
	}
	p, err := s.product(ctx, key, productID)
	if err != nil {
		return View{}, err
	}
	if variantID != "" {
		if _, ok := p.Variant(variantID); !ok {
			return View{}, fmt.Errorf("product %d: %w", productID, catalog.ErrVariantNotFound)
		}
	}
	return s.add(ctx, key, Line{ProductID: productID, VariantID: variantID, Quantity: qty})
}

// AddLineAt is AddLine with the variant given by its current display index.
// The index is resolved once; the line stores the stable variant id.
func (s *Service) AddLineAt(ctx context.Context, key Key, productID int64, qty int, variantIndex int) (View, error) {
	if err := checkKey(key); err != nil {
		return View{}, err
	}
	if err := checkAdd(productID, qty); err != nil {
		return View{}, err
	}
	p, err := s.product(ctx, key, productID)
	if err != nil {
		return View{}, err
	}
	v, ok := p.VariantAt(variantIndex)
	if !ok {
		return View{}, fmt.Errorf("product %d index %d: %w", productID, variantIndex, catalog.ErrVariantNotFound)
	}
	return s.add(ctx, key, Line{ProductID: productID, VariantID: v.ID, Quantity: qty})
}

// product loads a product sold by the cart's shop. Products of other shops
// read as not found.
func (s *Service) product(ctx context.Context, key Key, productID int64) (catalog.Product, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return catalog.Product{}, err
	}
	if p.ShopID != key.ShopID {
		return catalog.Product{}, fmt.Errorf("product %d in shop %d: %w", productID, key.ShopID, catalog.ErrProductNotFound)
	}
	return p, nil
}

func (s *Service) add(ctx context.Context, key Key, l Line) (View, error) {
	c, err := s.repo.Update(ctx, key, func(c *Cart) error {
		c.add(l)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.materialize(ctx, c)
}

// SetQuantity sets a line's quantity; zero removes it.
func (s *Service) SetQuantity(ctx context.Context, key Key, productID int64, qty int, variantID string) (View, error) {
	if err := checkKey(key); err != nil {
		return View{}, err
	}
	if qty < 0 || qty > MaxQuantity {
		return View{}, apperr.Field("quantity", fmt.Sprintf("must be between 0 and %d", MaxQuantity))
	}
	c, err := s.repo.Update(ctx, key, func(c *Cart) error {
		i := c.find(productID, variantID)
		switch {
		case i < 0 && qty == 0:
			return errNoChange
		case i < 0:
			return ErrLineNotFound
		case qty == 0:
			c.remove(i)
		default:
			c.Lines[i].Quantity = qty
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.materialize(ctx, c)
}

func (s *Service) RemoveLine(ctx context.Context, key Key, productID int64, variantID string) (View, error) {
	if err := checkKey(key); err != nil {
		return View{}, err
	}
	c, err := s.repo.Update(ctx, key, func(c *Cart) error {
		i := c.find(productID, variantID)
		if i < 0 {
			return errNoChange
		}
		c.remove(i)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.materialize(ctx, c)
}

// Clear empties the cart but keeps the record.
func (s *Service) Clear(ctx context.Context, key Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := s.repo.Update(ctx, key, func(c *Cart) error {
		if len(c.Lines) == 0 {
			return errNoChange
		}
		c.Lines = nil
		return nil
	})
	return err
}

// Get returns the priced view of the cart. A cart that was never written
// reads as empty.
func (s *Service) Get(ctx context.Context, key Key) (View, error) {
	if err := checkKey(key); err != nil {
		return View{}, err
	}
	c, err := s.load(ctx, key)
	if err != nil {
		return View{}, err
	}
	return s.materialize(ctx, c)
}

// Validate checks every stored line against current catalog state without
// changing the cart.
func (s *Service) Validate(ctx context.Context, key Key) (Validation, error) {
	if err := checkKey(key); err != nil {
		return Validation{}, err
	}
	c, err := s.load(ctx, key)
	if err != nil {
		return Validation{}, err
	}
	return s.validate(ctx, key.ShopID, c.Lines)
}

// ApplyCorrection validates and stores the corrected lines in one locked
// update.
func (s *Service) ApplyCorrection(ctx context.Context, key Key) (Validation, View, error) {
	if err := checkKey(key); err != nil {
		return Validation{}, View{}, err
	}
	var result Validation
	c, err := s.repo.Update(ctx, key, func(c *Cart) error {
		v, err := s.validate(ctx, key.ShopID, c.Lines)
		if err != nil {
			return err
		}
		result = v
		if v.Valid {
			return errNoChange
		}
		c.Lines = append([]Line(nil), v.Corrected...)
		return nil
	})
	if err != nil {
		return Validation{}, View{}, err
	}
	if !result.Valid {
		s.log.Info("cart corrected",
			zap.Int64("shop_id", key.ShopID),
			zap.String("user_id", key.UserID),
			zap.Int("problems", len(result.Problems)),
		)
	}
	view, err := s.materialize(ctx, c)
	if err != nil {
		return Validation{}, View{}, err
	}
	return result, view, nil
}

// Merge folds lines into the cart, summing quantities per (product, variant).
// Lines with a non-positive quantity are skipped, as are lines naming a
// product or variant the shop does not sell.
func (s *Service) Merge(ctx context.Context, key Key, lines []Line) (View, error) {
	if err := checkKey(key); err != nil {
		return View{}, err
	}
	lines, err := s.sellable(ctx, key.ShopID, lines)
	if err != nil {
		return View{}, err
	}
	c, err := s.repo.Update(ctx, key, func(c *Cart) error {
		if mergeLines(c, lines) == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	s.log.Info("cart lines merged", zap.Int64("shop_id", key.ShopID), zap.String("user_id", key.UserID), zap.Int("lines", len(lines)))
	return s.materialize(ctx, c)
}

// MergeCart folds the source cart into target and deletes the source. An
// absent or empty source leaves both carts as they are.
func (s *Service) MergeCart(ctx context.Context, target, source Key) (View, error) {
	if err := checkKey(target); err != nil {
		return View{}, err
	}
	if err := checkKey(source); err != nil {
		return View{}, err
	}
	if target.ShopID != source.ShopID {
		return View{}, apperr.Field("shopId", "carts from different shops cannot be merged")
	}
	if target == source {
		return s.Get(ctx, target)
	}
	merged := 0
	c, err := s.repo.Move(ctx, source, target, func(t *Cart, src Cart, found bool) error {
		if !found || len(src.Lines) == 0 {
			return errNoChange
		}
		merged = mergeLines(t, src.Lines)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	if merged > 0 {
		s.log.Info("cart merged",
			zap.Int64("shop_id", target.ShopID),
			zap.String("user_id", target.UserID),
			zap.String("source_user_id", source.UserID),
			zap.Int("lines", merged),
		)
	}
	return s.materialize(ctx, c)
}

// sellable keeps the lines whose product, and variant when set, exists in
// the given shop.
func (s *Service) sellable(ctx context.Context, shopID int64, lines []Line) ([]Line, error) {
	products, err := s.products.GetProducts(ctx, productIDs(lines))
	if err != nil {
		return nil, err
	}
	kept := make([]Line, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || p.ShopID != shopID {
			continue
		}
		if l.VariantID != "" && !hasVariant(p, l.VariantID) {
			continue
		}
		kept = append(kept, l)
	}
	return kept, nil
}

// Consume removes ordered quantities from the cart. Lines added after the
// order was read stay in the cart.
func (s *Service) Consume(ctx context.Context, key Key, ordered []Line) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := s.repo.Update(ctx, key, func(c *Cart) error {
		changed := false
		for _, o := range ordered {
			i := c.find(o.ProductID, o.VariantID)
			if i < 0 {
				continue
			}
			changed = true
			if c.Lines[i].Quantity <= o.Quantity {
				c.remove(i)
				continue
			}
			c.Lines[i].Quantity -= o.Quantity
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	return err
}

func (s *Service) load(ctx context.Context, key Key) (Cart, error) {
	c, err := s.repo.Get(ctx, key)
	if errors.Is(err, ErrCartNotFound) {
		return Cart{Key: key}, nil
	}
	return c, err
}

func (s *Service) materialize(ctx context.Context, c Cart) (View, error) {
	view := View{
		ShopID:      c.ShopID,
		UserID:      c.UserID,
		Lines:       make([]ViewLine, 0, len(c.Lines)),
		TotalAmount: decimal.Zero,
		Version:     c.Version,
		UpdatedAt:   c.UpdatedAt,
	}
	products, err := s.products.GetProducts(ctx, productIDs(c.Lines))
	if err != nil {
		return View{}, err
	}
	for _, l := range c.Lines {
		p, ok := products[l.ProductID]
		if !ok || p.ShopID != c.ShopID {
			continue
		}
		vl := ViewLine{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			Product:   p,
			Quote:     pricing.QuoteLine(p, l.VariantID, l.Quantity),
		}
		if v, ok := p.Variant(l.VariantID); ok {
			vl.Variant = &v
		}
		view.Lines = append(view.Lines, vl)
		view.TotalItems += l.Quantity
		view.TotalAmount = view.TotalAmount.Add(vl.Subtotal)
	}
	return view, nil
}

func (s *Service) validate(ctx context.Context, shopID int64, lines []Line) (Validation, error) {
	products, err := s.products.GetProducts(ctx, productIDs(lines))
	if err != nil {
		return Validation{}, err
	}
	out := Validation{Problems: make([]Problem, 0), Corrected: make([]Line, 0, len(lines))}
	for _, l := range lines {
		prob := Problem{ProductID: l.ProductID, VariantID: l.VariantID, Requested: l.Quantity}
		p, ok := products[l.ProductID]
		switch {
		case !ok || p.ShopID != shopID:
			prob.Code = ProblemMissingProduct
			prob.Message = fmt.Sprintf("product %d is no longer available", l.ProductID)
		case p.Status != catalog.StatusActive && p.Status != catalog.StatusOutOfStock:
			prob.Code = ProblemInactiveProduct
			prob.Message = fmt.Sprintf("%s is not currently for sale", p.Name)
		case l.VariantID != "" && !hasVariant(p, l.VariantID):
			prob.Code = ProblemMissingVariant
			prob.Message = fmt.Sprintf("the selected option of %s is no longer available", p.Name)
		default:
			available := p.Available(l.VariantID)
			if p.Status == catalog.StatusOutOfStock {
				available = 0
			}
			if available >= l.Quantity {
				out.Corrected = append(out.Corrected, l)
				continue
			}
			prob.Code = ProblemInsufficientStock
			prob.Available = max(available, 0)
			if prob.Available == 0 {
				prob.Message = fmt.Sprintf("%s is out of stock", p.Name)
			} else {
				prob.Message = fmt.Sprintf("only %d of %s left in stock", prob.Available, p.Name)
				out.Corrected = append(out.Corrected, Line{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: prob.Available})
			}
		}
		out.Problems = append(out.Problems, prob)
	}
	out.Valid = len(out.Problems) == 0
	return out, nil
}

func mergeLines(c *Cart, lines []Line) int {
	n := 0
	for _, l := range lines {
		if l.Quantity <= 0 || l.ProductID <= 0 {
			continue
		}
		c.add(l)
		n++
	}
	return n
}

func hasVariant(p catalog.Product, id string) bool {
	_, ok := p.Variant(id)
	return ok
}

func productIDs(lines []Line) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}

func checkKey(key Key) error {
	fields := map[string]string{}
	if key.ShopID <= 0 {
		fields["shopId"] = "must be a positive number"
	}
	if key.UserID == "" {
		fields["userId"] = "is required"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid cart key", fields)
	}
	return nil
}

func checkAdd(productID int64, qty int) error {
	fields := map[string]string{}
	if productID <= 0 {
		fields["productId"] = "must be a positive number"
	}
	if qty < 1 || qty > MaxQuantity {
		fields["quantity"] = fmt.Sprintf("must be between 1 and %d", MaxQuantity)
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid cart line", fields)
	}
	return nil
}
