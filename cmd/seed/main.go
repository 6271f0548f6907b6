package main

import (
	"bufio"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/mercadito/storefront-backend/config"
	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/internal/app/repository"
	"github.com/mercadito/storefront-backend/internal/db"
	"github.com/mercadito/storefront-backend/internal/storage"
	"github.com/mercadito/storefront-backend/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		assumeYes bool
		batchSize int
		imagesDir string
	)

	cmd := &cobra.Command{
		Use:   "seed <xlsx_file_path>",
		Short: "Import products from an XLSX sheet",
		Long: "Reads SKU, Name, Description, Price, Stock and Image columns from the first sheet\n" +
			"and upserts them by SKU. Local images are uploaded to S3 when --images-dir is set.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args[0], assumeYes, batchSize, imagesDir)
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "rows per insert batch")
	cmd.Flags().StringVar(&imagesDir, "images-dir", "", "directory holding images referenced by relative path")
	return cmd
}

func runImport(ctx context.Context, filePath string, assumeYes bool, batchSize int, imagesDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Initialize(logger.ConfigForEnvironment(cfg.Server.Environment))

	if err := db.Initialize(&cfg.Database); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, stats, err := readProductsFromXLSX(filePath)
	if err != nil {
		return err
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Total rows: %d\n", stats.Rows)
	fmt.Printf("  Valid products: %d\n", stats.Valid)
	fmt.Printf("  Skipped rows: %d\n", stats.Skipped)
	fmt.Printf("  Duplicate SKUs: %d\n", stats.Duplicate)

	if len(products) == 0 {
		fmt.Println("Nothing to import.")
		return nil
	}

	if !assumeYes && !confirm("Do you want to proceed with the import? (yes/no): ") {
		fmt.Println("Import cancelled.")
		return nil
	}

	if imagesDir != "" {
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("--images-dir requires AWS_S3_BUCKET")
		}
		uploaded, err := uploadImages(ctx, storage.NewS3Storage(&cfg.S3), products, imagesDir)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %d images\n", uploaded)
	}

	productRepo := repository.NewProductRepository(db.GetDB())
	fmt.Printf("Starting bulk import with batch size: %d\n", batchSize)
	if err := productRepo.UpsertBySKU(ctx, products, batchSize); err != nil {
		return fmt.Errorf("failed to import products: %w", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", len(products))
	return nil
}

// uploadImages replaces relative image paths with the object keys they were
// uploaded to. Absolute URLs are kept as they are.
func uploadImages(ctx context.Context, s3Storage *storage.S3Storage, products []model.Product, dir string) (int, error) {
	uploaded := 0
	for i := range products {
		ref := products[i].ImageURL
		if ref == "" || strings.Contains(ref, "://") {
			continue
		}

		path := filepath.Join(dir, ref)
		file, err := os.Open(path)
		if err != nil {
			return uploaded, fmt.Errorf("failed to open image for %s: %w", products[i].SKU, err)
		}

		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		key, err := s3Storage.UploadProductImage(ctx, products[i].SKU, filepath.Base(path), contentType, file)
		file.Close()
		if err != nil {
			return uploaded, err
		}

		products[i].ImageURL = key
		uploaded++
	}
	return uploaded, nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "yes" || answer == "y"
}
