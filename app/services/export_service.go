package services

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/pkg/httpclient"
	"github.com/driftmarket/driftmarket/pkg/logger"
)

// manifestName is the per-product metadata file inside the archive.
const manifestName = "product.json"

// productManifest is the portable product representation. Row ids and
// timestamps are excluded so exporting an unchanged product twice yields
// byte-identical manifests.
type productManifest struct {
	Slug         string          `json:"slug"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Condition    string          `json:"condition,omitempty"`
	Category     string          `json:"category,omitempty"`
	Brand        string          `json:"brand,omitempty"`
	Images       []string        `json:"images"`
	PayeeEmail   string          `json:"payee_email,omitempty"`
	CheckoutLink string          `json:"checkout_link"`
	Rating       float64         `json:"rating"`
	ReviewCount  int             `json:"review_count"`
	Reviews      models.JSONList `json:"reviews,omitempty"`
	Metadata     models.JSONMap  `json:"metadata,omitempty"`
	InStock      bool            `json:"in_stock"`
	ListedBy     string          `json:"listed_by"`
	Collections  []string        `json:"collections"`
}

func manifestFrom(p models.Product) productManifest {
	return productManifest{
		Slug:         p.Slug,
		Title:        p.Title,
		Description:  p.Description,
		Price:        p.Price,
		Currency:     p.Currency,
		Condition:    p.Condition,
		Category:     p.Category,
		Brand:        p.Brand,
		Images:       p.Images,
		PayeeEmail:   p.PayeeEmail,
		CheckoutLink: p.CheckoutLink,
		Rating:       p.Rating,
		ReviewCount:  p.ReviewCount,
		Reviews:      p.Reviews,
		Metadata:     p.Metadata,
		InStock:      p.InStock,
		ListedBy:     p.ListedBy,
		Collections:  p.Collections,
	}
}

// ExportService bundles products into ZIP archives: one folder per slug
// holding the manifest and the product's images fetched back over HTTP.
type ExportService struct {
	products     *repositories.ProductRepository
	imageTimeout time.Duration
}

func NewExportService(products *repositories.ProductRepository) *ExportService {
	return &ExportService{products: products, imageTimeout: 15 * time.Second}
}

// ExportOne streams a single-product archive to w.
func (s *ExportService) ExportOne(w io.Writer, slug string) error {
	return s.Export(w, []string{slug})
}

// Export streams an archive of the named products to w. Unknown slugs
// fail the export; unreachable images are logged and skipped so one dead
// CDN link never sinks the archive.
func (s *ExportService) Export(w io.Writer, slugs []string) error {
	zw := zip.NewWriter(w)

	for _, slug := range slugs {
		p, err := s.products.BySlug(slug)
		if err != nil {
			zw.Close()
			return fmt.Errorf("export: %s: %w", slug, err)
		}
		if err := s.writeProduct(zw, p); err != nil {
			zw.Close()
			return err
		}
	}

	return zw.Close()
}

func (s *ExportService) writeProduct(zw *zip.Writer, p models.Product) error {
	// Download images up front: the manifest references the bundled
	// filenames so import can re-upload them. Images that cannot be
	// fetched keep their original URL.
	type bundled struct {
		name string
		data []byte
	}
	var images []bundled
	manifest := manifestFrom(p)
	manifest.Images = make([]string, 0, len(p.Images))

	for i, imgURL := range p.Images {
		name, data, err := s.fetchImage(imgURL, i+1)
		if err != nil {
			logger.Warn("export: skipping image", "product", p.Slug, "url", imgURL, "error", err)
			manifest.Images = append(manifest.Images, imgURL)
			continue
		}
		images = append(images, bundled{name: name, data: data})
		manifest.Images = append(manifest.Images, name)
	}

	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("export: %s: encode manifest: %w", p.Slug, err)
	}

	// Fixed timestamps keep repeated exports byte-identical.
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:   p.Slug + "/" + manifestName,
		Method: zip.Deflate,
	})
	if err != nil {
		return err
	}
	if _, err := fw.Write(encoded); err != nil {
		return err
	}

	for _, img := range images {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:   p.Slug + "/" + img.name,
			Method: zip.Deflate,
		})
		if err != nil {
			return err
		}
		if _, err := fw.Write(img.data); err != nil {
			return err
		}
	}

	return nil
}

// fetchImage downloads one image and names it imgN with the extension
// taken from the URL path or the response content type.
func (s *ExportService) fetchImage(imgURL string, n int) (string, []byte, error) {
	resp, err := httpclient.Get(imgURL).
		Timeout(s.imageTimeout).
		Retry(2, time.Second).
		Send()
	if err != nil {
		return "", nil, err
	}
	if !resp.OK() {
		return "", nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	ext := imageExt(imgURL, resp.Header("Content-Type"))
	return fmt.Sprintf("img%d%s", n, ext), resp.Raw, nil
}

func imageExt(imgURL, contentType string) string {
	if u, err := url.Parse(imgURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return strings.ToLower(ext)
		}
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".jpg"
}
