package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/service"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const seedSellerEmail = "seed-seller@example.com"

// operator is the identity seed runs as when it needs admin rights.
var operator = &domain.Identity{ID: "marketplacectl", Role: domain.RoleAdmin, IsApproved: true}

var seedCategories = []struct {
	Name        string
	Description string
	Types       []string
}{
	{"Books", "Printed and digital books", []string{"Novel", "Cookbook", "Field Guide", "Atlas"}},
	{"Home Office", "Desks, chairs and lighting", []string{"Desk Lamp", "Monitor Stand", "Office Chair", "Cable Tray"}},
	{"Kitchen", "Cookware and utensils", []string{"Skillet", "Chef Knife", "Kettle", "Cutting Board"}},
	{"Outdoor", "Camping and hiking gear", []string{"Backpack", "Tent", "Headlamp", "Water Bottle"}},
}

var (
	seedPrefixes = []string{"Classic", "Compact", "Deluxe", "Everyday", "Pro", "Travel"}
	seedColors   = []string{"Black", "Walnut", "Slate", "Olive", "Sand", "White"}
)

// seedProduct is one generated catalog entry. Category is an index into
// seedCategories.
type seedProduct struct {
	Name        string
	Description string
	Category    int
	Price       int64
	Stock       int
	Weight      float64
}

// generateCatalog returns n products spread round-robin over the seed
// categories. The same seed always yields the same catalog.
func generateCatalog(seed uint64, n int) []seedProduct {
	rng := rand.New(rand.NewPCG(seed, seed))
	out := make([]seedProduct, 0, n)
	for i := 0; i < n; i++ {
		cat := i % len(seedCategories)
		types := seedCategories[cat].Types
		productType := types[rng.IntN(len(types))]
		name := fmt.Sprintf("%s %s - %s",
			seedPrefixes[rng.IntN(len(seedPrefixes))], productType, seedColors[rng.IntN(len(seedColors))])

		// 5.00 to 499.00, rounded to whole units.
		price := int64(500+rng.IntN(49400)) / 100 * 100

		out = append(out, seedProduct{
			Name:        name,
			Description: fmt.Sprintf("A dependable %s for every day.", strings.ToLower(productType)),
			Category:    cat,
			Price:       price,
			Stock:       rng.IntN(50),
			Weight:      float64(1+rng.IntN(50)) / 10,
		})
	}
	return out
}

type seedOptions struct {
	products int
	seed     uint64
	password string
}

func newSeedCmd(root *rootOptions) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the store with demo categories and products",
		Long: `Populate the store with demo categories, an approved seller and a
deterministic set of products. Existing categories and the seed seller are
reused, so the command can run more than once; every run adds products.`,
		Args: cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if opts.products < 0 {
				return errors.New("--products must not be negative")
			}
			if len(opts.password) < 8 {
				return errors.New("--seller-password must be at least 8 characters")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cfg, log, err := root.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			events := event.NewEmitter(nil, log)
			s := seeder{
				auth: service.NewAuthService(store.Users, auth.NewBcryptHasher(cfg.BcryptCost),
					auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL), events, log, service.AuthOptions{}),
				admin:      service.NewAdminService(store.Users, store.Products, store.Orders, nil, events, log),
				categories: service.NewCategoryService(store.Categories, store.Products, log),
				catalog:    service.NewCatalogService(store.Products, store.Categories, store.Reviews, nil, events, log),
				users:      store.Users,
				logger:     log,
			}
			created, err := s.run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products\n", created)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.products, "products", 100, "number of products to create")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 42, "random seed for product generation")
	cmd.Flags().StringVar(&opts.password, "seller-password", "seed-seller-pass", "password of the seed seller")
	return cmd
}

type seeder struct {
	auth       *service.AuthService
	admin      *service.AdminService
	categories *service.CategoryService
	catalog    *service.CatalogService
	users      interface {
		GetByEmail(ctx context.Context, email string) (*domain.User, error)
	}
	logger *slog.Logger
}

func (s seeder) run(ctx context.Context, opts *seedOptions) (int, error) {
	categoryIDs, err := s.ensureCategories(ctx)
	if err != nil {
		return 0, err
	}
	seller, err := s.ensureSeller(ctx, opts.password)
	if err != nil {
		return 0, err
	}

	id := domain.IdentityOf(seller)
	created := 0
	for _, p := range generateCatalog(opts.seed, opts.products) {
		_, err := s.catalog.CreateProduct(ctx, id, service.CreateProductInput{
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			CategoryID:  categoryIDs[p.Category],
			Weight:      p.Weight,
			Stock:       p.Stock,
		})
		if err != nil {
			return created, fmt.Errorf("create product %q: %w", p.Name, err)
		}
		created++
	}
	s.logger.InfoContext(ctx, "seed complete", slog.Int("products", created))
	return created, nil
}

// ensureCategories creates the seed categories, reusing existing ones, and
// returns their ids in seedCategories order.
func (s seeder) ensureCategories(ctx context.Context) ([]string, error) {
	existing, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(existing))
	for _, c := range existing {
		byName[strings.ToLower(c.Name)] = c.ID
	}

	ids := make([]string, len(seedCategories))
	for i, sc := range seedCategories {
		if id, ok := byName[strings.ToLower(sc.Name)]; ok {
			ids[i] = id
			continue
		}
		c, err := s.categories.CreateCategory(ctx, operator, service.CategoryInput{Name: sc.Name, Description: sc.Description})
		if err != nil {
			return nil, fmt.Errorf("create category %q: %w", sc.Name, err)
		}
		ids[i] = c.ID
	}
	return ids, nil
}

// ensureSeller registers and approves the seed seller unless it exists.
func (s seeder) ensureSeller(ctx context.Context, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, seedSellerEmail)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		user, err = s.auth.Register(ctx, service.RegisterInput{
			Email: seedSellerEmail, Password: password, Name: "Seed Seller", Role: domain.RoleSeller,
		})
		if err != nil {
			return nil, fmt.Errorf("register seed seller: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("get seed seller: %w", err)
	}
	if user.Role != domain.RoleSeller {
		return nil, fmt.Errorf("%s exists with role %s", seedSellerEmail, user.Role)
	}
	return s.admin.ApproveUser(ctx, operator, user.ID)
}
