// Package seed loads the initial accounts and catalog. Every step checks
// what already exists, so running it again is harmless.
package seed

import (
	"context"
	"fmt"

	"github.com/rongwang/library-server/internal/auth"
	"github.com/rongwang/library-server/internal/config"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/repository"
	"github.com/rongwang/library-server/internal/service"
	"github.com/rongwang/library-server/internal/utils"
)

const (
	AdminName      = "Administrator Perpustakaan"
	MemberName     = "Budi Santoso"
	MemberEmail    = "budi.santoso@gmail.com"
	MemberPassword = "User1234"
)

type categorySeed struct {
	Name        string
	Description string
}

type bookSeed struct {
	Title       string
	Author      string
	Category    string
	Copies      int
	Description string
}

var categories = []categorySeed{
	{"Novel", "Prose fiction"},
	{"Biografi", "Lives of well known figures"},
	{"Sejarah", "History"},
	{"Pendidikan", "Learning and self development"},
	{"Filsafat", "Philosophy"},
	{"Puisi", "Poetry collections"},
	{"Drama", "Plays and scripts"},
}

var books = []bookSeed{
	{"Laskar Pelangi", "Andrea Hirata", "Novel", 8, "Ten children of Belitung fight for their schooling"},
	{"Bumi Manusia", "Pramoedya Ananta Toer", "Novel", 6, "First book of the Buru Quartet, set in the colonial era"},
	{"Ronggeng Dukuh Paruk", "Ahmad Tohari", "Novel", 5, "A village dancer in rural Java"},
	{"Ayat-Ayat Cinta", "Habiburrahman El Shirazy", "Novel", 7, "An Indonesian student in Cairo"},
	{"Negeri 5 Menara", "Ahmad Fuadi", "Novel", 6, "Six friends at a pesantren and their dreams"},
	{"Soekarno: Biografi Singkat", "Lambert Giebels", "Biografi", 4, "A short life of the first president"},
	{"Sejarah Indonesia Modern", "M.C. Ricklefs", "Sejarah", 5, "Indonesia from 1200 to the present"},
	{"Filosofi Teras", "Henry Manampiring", "Filsafat", 8, "Stoicism for everyday life"},
	{"Chairil Anwar: Biografi Sastrawan", "H.B. Jassin", "Biografi", 3, "The poet of the 1945 generation"},
	{"Hujan Bulan Juni", "Sapardi Djoko Damono", "Puisi", 4, "Selected poems"},
	{"Tenggelamnya Kapal Van Der Wijck", "Hamka", "Novel", 5, "A love story across Minangkabau customs"},
	{"Cantik Itu Luka", "Eka Kurniawan", "Novel", 6, "Magic realism across a century of history"},
}

// Result counts what a run created
type Result struct {
	AdminCreated  bool
	MemberCreated bool
	Categories    int
	Books         int
}

// Run creates the admin, the sample member, the categories and, when the
// catalog is empty, the books.
func Run(ctx context.Context, svc service.Service, repo repository.Repository, cfg config.SeedConfig, logger *utils.Logger) (*Result, error) {
	result := &Result{}

	admin, err := repo.GetUserByEmail(ctx, cfg.AdminEmail)
	if err != nil {
		return nil, fmt.Errorf("error checking admin: %w", err)
	}
	if admin == nil {
		admin, err = svc.CreateAdmin(ctx, AdminName, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("error creating admin: %w", err)
		}
		result.AdminCreated = true
	}
	principal := auth.Principal{UserID: admin.ID, Role: admin.Role, Name: admin.FullName}

	existing, err := repo.GetUserByEmail(ctx, MemberEmail)
	if err != nil {
		return nil, fmt.Errorf("error checking sample member: %w", err)
	}
	if existing == nil {
		if _, err := svc.Register(ctx, models.RegisterRequest{
			FullName: MemberName,
			Email:    MemberEmail,
			Password: MemberPassword,
		}); err != nil {
			return nil, fmt.Errorf("error creating sample member: %w", err)
		}
		result.MemberCreated = true
	}

	categoryIDs := make(map[string]string, len(categories))
	for _, c := range categories {
		category, err := repo.GetCategoryByName(ctx, c.Name)
		if err != nil {
			return nil, fmt.Errorf("error checking category %s: %w", c.Name, err)
		}
		if category == nil {
			category, err = svc.CreateCategory(ctx, principal, models.CategoryRequest{Name: c.Name, Description: c.Description})
			if err != nil {
				return nil, fmt.Errorf("error creating category %s: %w", c.Name, err)
			}
			result.Categories++
		}
		categoryIDs[c.Name] = category.ID
	}

	count, err := repo.CountBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("error counting books: %w", err)
	}
	if count == 0 {
		for _, b := range books {
			_, err := svc.CreateBook(ctx, principal, models.BookRequest{
				Title:       b.Title,
				Author:      b.Author,
				CategoryID:  categoryIDs[b.Category],
				TotalCopies: b.Copies,
				Description: b.Description,
			})
			if err != nil {
				return nil, fmt.Errorf("error creating book %s: %w", b.Title, err)
			}
			result.Books++
		}
	}

	logger.Info("seed complete",
		"admin_created", result.AdminCreated,
		"member_created", result.MemberCreated,
		"categories", result.Categories,
		"books", result.Books,
	)
	return result, nil
}
