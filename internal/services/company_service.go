package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockwatch/backend/internal/apperrors"
	"github.com/stockwatch/backend/internal/models"
)

const (
	// SearchResultCap bounds the number of rows a search can return.
	SearchResultCap = 50

	// DefaultImportBatchSize is the number of rows inserted per round-trip
	// when no batch size is configured.
	DefaultImportBatchSize = 500
)

type CompanyService struct {
	DB        *gorm.DB
	BatchSize int
}

func NewCompanyService(db *gorm.DB, batchSize int) *CompanyService {
	if batchSize <= 0 {
		batchSize = DefaultImportBatchSize
	}
	return &CompanyService{DB: db, BatchSize: batchSize}
}

// Search returns companies whose name or symbol contains the query,
// case-insensitively. Results are ordered by name then id (a stable
// tie-break) and capped at SearchResultCap rows.
func (s *CompanyService) Search(query string) ([]models.Company, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.ErrEmptyQuery
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var companies []models.Company
	err := s.DB.
		Where("LOWER(company_name) LIKE ? ESCAPE '\\' OR LOWER(symbol) LIKE ? ESCAPE '\\'", pattern, pattern).
		Order("company_name ASC, id ASC").
		Limit(SearchResultCap).
		Find(&companies).Error
	return companies, err
}

// escapeLike neutralizes LIKE metacharacters so the query is matched as a
// literal substring; "%" must find companies containing a percent sign,
// not every company.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GetCompanyByID returns a single company by its identifier
func (s *CompanyService) GetCompanyByID(id uint) (*models.Company, error) {
	var company models.Company
	if err := s.DB.First(&company, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &company, nil
}

// ImportCompanies bulk-loads catalog rows from a CSV source with a
// company_name,symbol,scripcode header. Inserts are batched and ignore
// conflicts, so re-running over the same file neither duplicates nor
// fails. Rows missing a name or symbol are skipped with a warning.
// Returns the number of rows handed to the database and the number skipped.
func (s *CompanyService) ImportCompanies(reader io.Reader) (int, int, error) {
	csvReader := csv.NewReader(reader)
	// Ragged rows are handled per-field below rather than aborting the run
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read CSV header: %w", err)
	}

	columnMap := make(map[string]int)
	for i, col := range header {
		columnMap[strings.TrimSpace(col)] = i
	}

	nameIdx, ok := columnMap["company_name"]
	if !ok {
		return 0, 0, errors.New("CSV is missing required column company_name")
	}
	symbolIdx, ok := columnMap["symbol"]
	if !ok {
		return 0, 0, errors.New("CSV is missing required column symbol")
	}
	scripIdx, hasScrip := columnMap["scripcode"]

	batch := make([]models.Company, 0, s.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		// ON CONFLICT DO NOTHING keeps the import idempotent at the
		// symbol/scripcode uniqueness level
		err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&batch).Error
		batch = batch[:0]
		return err
	}

	processed := 0
	skipped := 0
	line := 1
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return processed, skipped, err
		}
		line++

		company := models.Company{
			CompanyName: fieldAt(row, nameIdx),
			Symbol:      fieldAt(row, symbolIdx),
		}
		if company.CompanyName == "" || company.Symbol == "" {
			skipped++
			log.Printf("import: skipping line %d: missing company_name or symbol", line)
			continue
		}
		if hasScrip {
			if scripcode := fieldAt(row, scripIdx); scripcode != "" {
				company.Scripcode = &scripcode
			}
		}

		batch = append(batch, company)
		processed++
		if len(batch) >= s.BatchSize {
			if err := flush(); err != nil {
				return processed, skipped, err
			}
		}
	}

	if err := flush(); err != nil {
		return processed, skipped, err
	}

	return processed, skipped, nil
}

// CountCompanies returns the catalog size
func (s *CompanyService) CountCompanies() (int64, error) {
	var count int64
	err := s.DB.Model(&models.Company{}).Count(&count).Error
	return count, err
}

func fieldAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
