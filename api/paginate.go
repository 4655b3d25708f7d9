package api

import (
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"techshop/store"
)

type pageBody struct {
	Count    int          `json:"count"`
	Next     *string      `json:"next"`
	Previous *string      `json:"previous"`
	Results  interface{}  `json:"results"`
	Media    *AdminAssets `json:"media,omitempty"`
}

// pageNumber reads ?page=; it starts at 1.
func pageNumber(c *fiber.Ctx) (int, error) {
	raw := c.Query("page")
	if raw == "" {
		return 1, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidPage
	}

	return n, nil
}

func window(n, size int) store.Page {
	return store.Page{Limit: size, Offset: (n - 1) * size}
}

// paginate writes one page of results. Page 1 always exists; any other page
// past the last one is an error.
func paginate(c *fiber.Ctx, n, size, total int, results interface{}, media *AdminAssets) error {
	if n > 1 && (n-1)*size >= total {
		return errInvalidPage
	}

	body := pageBody{
		Count:   total,
		Results: results,
		Media:   media,
	}

	if n*size < total {
		next := pageURL(c, n+1)
		body.Next = &next
	}

	if n > 1 {
		prev := pageURL(c, n-1)
		body.Previous = &prev
	}

	return c.JSON(body)
}

func pageURL(c *fiber.Ctx, n int) string {
	u, err := url.Parse(c.BaseURL() + c.OriginalURL())
	if err != nil {
		return ""
	}

	q := u.Query()
	if n == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(n))
	}
	u.RawQuery = q.Encode()

	return u.String()
}
