package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-commerce/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	p := parsePage(r)
	products, total, err := h.catalog.List(r.Context(), product.Filter{
		CategoryID: r.URL.Query().Get("category"),
		Offset:     p.Offset(),
		Limit:      p.Limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Products fetched successfully",
		encodePage(p, total, "products", "totalProducts", func(e *jx.Encoder) {
			for i := range products {
				h.encodeProduct(e, &products[i])
			}
		}))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "productId"))
	h.respondProduct(w, r, http.StatusOK, p, err, "Product fetched successfully")
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProductInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.catalog.Create(r.Context(), caller(r).UserID, in)
	h.respondProduct(w, r, http.StatusCreated, p, err, "Product created successfully")
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProductInput(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), chi.URLParam(r, "productId"), in)
	h.respondProduct(w, r, http.StatusOK, p, err, "Product updated successfully")
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Categories fetched successfully", func(e *jx.Encoder) {
		e.ArrStart()
		for i := range categories {
			encodeCategory(e, &categories[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var name *string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "name" {
			var err error
			name, err = readString(d, key)
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), caller(r).UserID, deref(name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Category created successfully", func(e *jx.Encoder) { encodeCategory(e, c) })
}

func (h *Handler) respondProduct(w http.ResponseWriter, r *http.Request, status int, p *product.Product, err error, message string) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, message, func(e *jx.Encoder) { h.encodeProduct(e, p) })
}

func decodeProductInput(r *http.Request) (product.Input, error) {
	var in product.Input
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			in.Name, err = readString(d, key)
		case "description":
			in.Description, err = readString(d, key)
		case "mainImage":
			in.MainImage, err = readString(d, key)
		case "price":
			in.Price, err = readDecimal(d, key)
		case "stock":
			in.Stock, err = readInt(d, key)
		case "category":
			in.CategoryID, err = readString(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	return in, err
}

// imageURL prefixes relative image paths with the configured base URL.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(path, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("mainImage", func(e *jx.Encoder) { e.Str(h.imageURL(p.MainImage)) })
		e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.CategoryID) })
	})
}

func encodeCategory(e *jx.Encoder, c *product.Category) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, c.CreatedAt) })
	})
}
