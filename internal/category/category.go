// Package category keeps the per-shop product categories that products are
// tagged with through their category ids.
package category

import "time"

type Category struct {
	ID        int64     `json:"categoryId"`
	ShopID    int64     `json:"shopId"`
	Name      string    `json:"categoryName"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}
