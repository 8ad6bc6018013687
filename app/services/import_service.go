package services

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/pkg/logger"
	"github.com/driftmarket/driftmarket/pkg/metrics"
	"github.com/driftmarket/driftmarket/pkg/storage"
)

// ImportResult reports per-archive outcome counts plus item-level errors.
type ImportResult struct {
	Imported int               `json:"imported"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// ImportService restores products from export archives: reads each
// folder's manifest, uploads the bundled images to object storage and
// upserts the product by slug.
type ImportService struct {
	products *repositories.ProductRepository
	disk     storage.Disk
}

func NewImportService(products *repositories.ProductRepository, disk storage.Disk) *ImportService {
	return &ImportService{products: products, disk: disk}
}

// Import walks a ZIP archive and upserts one product per top-level
// folder. Folders with malformed or incomplete manifests are skipped;
// database or storage errors count as failed. Nothing aborts the run.
func (s *ImportService) Import(r io.ReaderAt, size int64) (ImportResult, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import: open archive: %w", err)
	}

	folders := groupByFolder(zr.File)
	res := ImportResult{Errors: map[string]string{}}

	// Deterministic processing order.
	names := make([]string, 0, len(folders))
	for name := range folders {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, folder := range names {
		files := folders[folder]
		outcome, err := s.importFolder(folder, files)
		switch outcome {
		case "imported":
			res.Imported++
		case "skipped":
			res.Skipped++
			if err != nil {
				res.Errors[folder] = err.Error()
			}
		case "failed":
			res.Failed++
			res.Errors[folder] = err.Error()
		}
		metrics.ProductsImported.WithLabelValues(outcome).Inc()
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	logger.Info("import: done",
		"imported", res.Imported, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// importFolder handles one product folder. Returns "imported", "skipped"
// or "failed" plus the error behind a skip/failure.
func (s *ImportService) importFolder(folder string, files map[string]*zip.File) (string, error) {
	mf, ok := files[manifestName]
	if !ok {
		return "skipped", fmt.Errorf("missing %s", manifestName)
	}

	manifest, err := readManifest(mf)
	if err != nil {
		return "skipped", err
	}
	if manifest.Slug == "" {
		return "skipped", fmt.Errorf("manifest has no slug")
	}
	if manifest.CheckoutLink == "" {
		return "skipped", fmt.Errorf("manifest has no checkout_link")
	}
	if len(manifest.Images) == 0 {
		return "skipped", fmt.Errorf("manifest has no images")
	}

	images, err := s.resolveImages(manifest.Slug, manifest.Images, files)
	if err != nil {
		return "failed", err
	}

	p := models.Product{
		Slug:         manifest.Slug,
		Title:        manifest.Title,
		Description:  manifest.Description,
		Price:        manifest.Price,
		Currency:     defaultCurrency(manifest.Currency),
		Condition:    manifest.Condition,
		Category:     manifest.Category,
		Brand:        manifest.Brand,
		Images:       images,
		PayeeEmail:   manifest.PayeeEmail,
		CheckoutLink: manifest.CheckoutLink,
		Rating:       manifest.Rating,
		ReviewCount:  manifest.ReviewCount,
		Reviews:      manifest.Reviews,
		Metadata:     manifest.Metadata,
		InStock:      manifest.InStock,
		ListedBy:     manifest.ListedBy,
		Collections:  models.StringList(manifest.Collections),
	}

	if err := s.products.UpsertBySlug(&p); err != nil {
		return "failed", fmt.Errorf("upsert: %w", err)
	}
	return "imported", nil
}

// resolveImages turns manifest image entries into public URLs. Entries
// that are already URLs pass through; bundled filenames are uploaded to
// object storage under the product's slug.
func (s *ImportService) resolveImages(slug string, entries []string, files map[string]*zip.File) (models.StringList, error) {
	out := make(models.StringList, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry, "http://") || strings.HasPrefix(entry, "https://") {
			out = append(out, entry)
			continue
		}

		base := strings.TrimPrefix(entry, slug+"/")
		zf, ok := files[base]
		if !ok {
			return nil, fmt.Errorf("image %s not in archive", entry)
		}

		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", entry, err)
		}
		storePath := slug + "/" + base
		err = s.disk.PutStream(storePath, rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", entry, err)
		}

		out = append(out, s.disk.URL(storePath))
	}
	return out, nil
}

func readManifest(zf *zip.File) (productManifest, error) {
	rc, err := zf.Open()
	if err != nil {
		return productManifest{}, fmt.Errorf("open %s: %w", manifestName, err)
	}
	defer rc.Close()

	var m productManifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return productManifest{}, fmt.Errorf("decode %s: %w", manifestName, err)
	}
	return m, nil
}

// groupByFolder maps top-level folder → basename → file, ignoring loose
// root files and nested subdirectories.
func groupByFolder(files []*zip.File) map[string]map[string]*zip.File {
	out := map[string]map[string]*zip.File{}
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		parts := strings.Split(f.Name, "/")
		if len(parts) != 2 || parts[1] == "" {
			continue
		}
		folder, base := parts[0], parts[1]
		if out[folder] == nil {
			out[folder] = map[string]*zip.File{}
		}
		out[folder][base] = f
	}
	return out
}
