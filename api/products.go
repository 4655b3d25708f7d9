package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"techshop/ent"
	"techshop/store"
)

const (
	imageDir = "products"
	modelDir = "3d_models"
)

type componentView struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	Price  ent.Money `json:"price"`
	Volume *string   `json:"volume"`
}

type productView struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	Category       int64             `json:"category"`
	CategoryName   string            `json:"category_name"`
	BasePrice      ent.Money         `json:"base_price"`
	Description    *string           `json:"description"`
	Image          *string           `json:"image"`
	Model3D        *string           `json:"model_3d"`
	Stock          int               `json:"stock"`
	Discount       int               `json:"discount"`
	ComponentType  ent.ComponentType `json:"component_type"`
	Components     []componentView   `json:"components"`
	CompatibleWith []int64           `json:"compatible_with"`
	Brand          *string           `json:"brand"`
}

func (s *Server) productView(c *fiber.Ctx, p *ent.Product) productView {
	compatible := p.CompatibleWith
	if compatible == nil {
		compatible = []int64{}
	}

	return productView{
		ID:             p.ID,
		Name:           p.Name,
		Category:       p.CategoryID,
		CategoryName:   p.CategoryName,
		BasePrice:      p.BasePrice,
		Description:    p.Description,
		Image:          s.mediaURL(c, p.Image),
		Model3D:        s.mediaURL(c, p.Model3D),
		Stock:          p.Stock,
		Discount:       p.Discount,
		ComponentType:  p.ComponentType,
		Components: lo.Map(p.Components, func(co ent.ComponentOption, _ int) componentView {
			return componentView{ID: co.ID, Name: co.Name, Price: co.Price, Volume: co.Volume}
		}),
		CompatibleWith: compatible,
		Brand:          p.Brand,
	}
}

// mediaURL renders a stored file path as an absolute URL.
func (s *Server) mediaURL(c *fiber.Ctx, file *string) *string {
	if file == nil || *file == "" {
		return nil
	}

	u := s.opts.MediaURL + strings.TrimPrefix(*file, "/")
	if !strings.Contains(u, "://") {
		u = c.BaseURL() + u
	}

	return &u
}

type productInput struct {
	Name           *string  `json:"name" validate:"required,notblank,max=200"`
	Category       *number  `json:"category" validate:"required,integer"`
	BasePrice      *number  `json:"base_price" validate:"omitempty,money"`
	Description    *string  `json:"description"`
	Stock          *number  `json:"stock" validate:"omitempty,integer,imin=0"`
	Discount       *number  `json:"discount" validate:"omitempty,integer,imin=0,imax=100"`
	ComponentType  *string  `json:"component_type" validate:"omitempty,oneof=cpu gpu ram motherboard case psu storage other"`
	CompatibleWith []number `json:"compatible_with" validate:"omitempty,dive,integer"`
	Brand          *string  `json:"brand" validate:"omitempty,max=100"`
}

// apply copies the validated input onto p. Fields the payload leaves out
// keep their current value; a missing compatible_with leaves the edges alone.
func (in productInput) apply(p *ent.Product, given payload) error {
	p.Name = strings.TrimSpace(*in.Name)

	category, err := in.Category.int()
	if err != nil {
		return err
	}
	p.CategoryID = category

	if in.BasePrice != nil {
		p.BasePrice, err = in.BasePrice.money()
		if err != nil {
			return err
		}
	}

	if given.has("description") {
		p.Description = trimmed(in.Description)
	}
	if given.has("brand") {
		p.Brand = trimmed(in.Brand)
	}

	if in.Stock != nil {
		stock, err := in.Stock.int()
		if err != nil {
			return err
		}
		p.Stock = int(stock)
	}

	if in.Discount != nil {
		discount, err := in.Discount.int()
		if err != nil {
			return err
		}
		p.Discount = int(discount)
	}

	if in.ComponentType != nil {
		p.ComponentType = ent.ComponentType(*in.ComponentType)
	}
	if p.ComponentType == "" {
		p.ComponentType = ent.ComponentOther
	}

	p.CompatibleWith = nil
	if in.CompatibleWith != nil {
		p.CompatibleWith = make([]int64, 0, len(in.CompatibleWith))
		for _, n := range in.CompatibleWith {
			id, err := n.int()
			if err != nil {
				return err
			}
			p.CompatibleWith = append(p.CompatibleWith, id)
		}
	}

	return nil
}

// productBase is the writable part of p, the starting point of a PATCH.
func productBase(p *ent.Product) payload {
	return toPayload(struct {
		Name          string            `json:"name"`
		Category      int64             `json:"category"`
		BasePrice     ent.Money         `json:"base_price"`
		Description   *string           `json:"description"`
		Stock         int               `json:"stock"`
		Discount      int               `json:"discount"`
		ComponentType ent.ComponentType `json:"component_type"`
		Brand         *string           `json:"brand"`
	}{
		Name:          p.Name,
		Category:      p.CategoryID,
		BasePrice:     p.BasePrice,
		Description:   p.Description,
		Stock:         p.Stock,
		Discount:      p.Discount,
		ComponentType: p.ComponentType,
		Brand:         p.Brand,
	})
}

// blankable form fields keep empty values; other empty form fields count as absent.
var blankable = map[string]bool{
	"name":        true,
	"description": true,
	"brand":       true,
}

// productRequest is a product write read from either a JSON or a multipart body.
type productRequest struct {
	fields payload
	files  map[string]*multipart.FileHeader
}

func readProductRequest(c *fiber.Ctx) (*productRequest, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		p, err := readPayload(c)
		if err != nil {
			return nil, err
		}

		return &productRequest{fields: p}, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Multipart form parse error - "+err.Error())
	}

	r := &productRequest{
		fields: payload{},
		files:  map[string]*multipart.FileHeader{},
	}

	for k, vs := range form.Value {
		if k == "compatible_with" {
			r.fields[k] = rawJSON(lo.Compact(vs))
			continue
		}
		if len(vs) == 0 || (vs[0] == "" && !blankable[k]) {
			continue
		}
		r.fields[k] = rawJSON(vs[0])
	}

	for k, fhs := range form.File {
		if len(fhs) != 0 {
			r.files[k] = fhs[0]
		}
	}

	return r, nil
}

func rawJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

var fileFields = []struct {
	name  string
	dir   string
	image bool
}{
	{name: "image", dir: imageDir, image: true},
	{name: "model_3d", dir: modelDir},
}

// applyFiles stores uploaded files and handles explicit nulls that clear them.
// It returns the paths it wrote so that a failed write can discard them.
func (s *Server) applyFiles(c *fiber.Ctx, r *productRequest, p *ent.Product) (saved []string, err error) {
	targets := map[string]**string{
		"image":    &p.Image,
		"model_3d": &p.Model3D,
	}

	defer func() {
		if err != nil {
			s.discardUploads(saved)
			saved = nil
		}
	}()

	fe := fieldErrors{}

	for _, f := range fileFields {
		if fh, ok := r.files[f.name]; ok {
			if f.image && !isImage(fh) {
				fe.add(f.name, "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
				continue
			}

			stored, err := s.saveUpload(c, fh, f.dir)
			if err != nil {
				return saved, err
			}
			saved = append(saved, stored)
			*targets[f.name] = &stored
			continue
		}

		if !r.fields.has(f.name) {
			continue
		}
		if r.fields.isNull(f.name) {
			*targets[f.name] = nil
			continue
		}
		if r.files == nil {
			fe.add(f.name, "The submitted data was not a file. Check the encoding type on the form.")
		}
	}

	if len(fe) != 0 {
		return saved, fe
	}

	return saved, nil
}

// discardUploads removes files stored for a write that did not go through.
func (s *Server) discardUploads(paths []string) {
	for _, rel := range paths {
		err := os.Remove(filepath.Join(s.opts.MediaRoot, filepath.FromSlash(rel)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logrus.WithError(err).WithField("file", rel).Warn("failed to remove upload")
		}
	}
}

func isImage(fh *multipart.FileHeader) bool {
	f, err := fh.Open()
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)

	return strings.HasPrefix(http.DetectContentType(head[:n]), "image/")
}

var unsafeFileChars = regexp.MustCompile(`[^-\p{L}\p{N}_.]`)

func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = unsafeFileChars.ReplaceAllString(name, "")
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// saveUpload writes fh under MEDIA_ROOT/dir and returns the stored path,
// relative to MEDIA_ROOT. Existing files are never overwritten.
func (s *Server) saveUpload(c *fiber.Ctx, fh *multipart.FileHeader, dir string) (string, error) {
	if s.opts.MediaRoot == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "File uploads are disabled.")
	}

	name := cleanFileName(fh.Filename)
	rel := path.Join(dir, name)
	full := filepath.Join(s.opts.MediaRoot, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	if _, err := os.Stat(full); err == nil {
		ext := path.Ext(name)
		rel = path.Join(dir, strings.TrimSuffix(name, ext)+"_"+uuid.NewString()[:7]+ext)
		full = filepath.Join(s.opts.MediaRoot, filepath.FromSlash(rel))
	}

	if err := c.SaveFile(fh, full); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}

	return rel, nil
}

func (s *Server) listProducts(c *fiber.Ctx) error {
	n, err := pageNumber(c)
	if err != nil {
		return err
	}

	ps, total, err := s.store.ListProducts(c.UserContext(), store.ProductFilter{}, window(n, s.opts.PageSize))
	if err != nil {
		return err
	}

	views := lo.Map(ps, func(p ent.Product, _ int) productView {
		return s.productView(c, &p)
	})

	return paginate(c, n, s.opts.PageSize, total, views, nil)
}

func (s *Server) getProduct(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	p, err := s.store.GetProduct(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(s.productView(c, p))
}

func (s *Server) createProduct(c *fiber.Ctx) error {
	r, err := readProductRequest(c)
	if err != nil {
		return err
	}

	var in productInput
	if err := s.bind(r.fields, &in); err != nil {
		return err
	}

	var p ent.Product
	if err := in.apply(&p, r.fields); err != nil {
		return err
	}

	saved, err := s.applyFiles(c, r, &p)
	if err != nil {
		return err
	}

	if err := s.store.CreateProduct(c.UserContext(), &p); err != nil {
		s.discardUploads(saved)
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(s.productView(c, &p))
}

func (s *Server) updateProduct(c *fiber.Ctx) error {
	return s.writeProduct(c, false)
}

func (s *Server) patchProduct(c *fiber.Ctx) error {
	return s.writeProduct(c, true)
}

func (s *Server) writeProduct(c *fiber.Ctx, partial bool) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	p, err := s.store.GetProduct(c.UserContext(), id)
	if err != nil {
		return err
	}

	r, err := readProductRequest(c)
	if err != nil {
		return err
	}

	fields := r.fields
	if partial {
		fields = fields.over(productBase(p))
	}

	var in productInput
	if err := s.bind(fields, &in); err != nil {
		return err
	}

	if err := in.apply(p, fields); err != nil {
		return err
	}

	saved, err := s.applyFiles(c, r, p)
	if err != nil {
		return err
	}

	if err := s.store.UpdateProduct(c.UserContext(), p); err != nil {
		s.discardUploads(saved)
		return err
	}

	return c.JSON(s.productView(c, p))
}

func (s *Server) deleteProduct(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	if err := s.store.DeleteProduct(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
