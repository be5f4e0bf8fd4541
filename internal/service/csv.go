package service

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"marketplace-api/internal/domain"
)

// MaxCSVRows 单个文件最多导入的商品行数
const MaxCSVRows = 5000

var csvColumns = []string{"name", "description", "price", "category", "sku", "stock", "image"}

type CSVProduct struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	SKU         string
	Stock       int
	Image       string
}

// ParseProductCSV 解析并校验商品 CSV。错误路径形如 "3.price"（行号从 1 开始，不含表头）
func ParseProductCSV(r io.Reader) ([]CSVProduct, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.Invalid("csv file is empty")
	}
	if err != nil {
		return nil, domain.Invalid("malformed csv: " + err.Error())
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := idx["name"]; !ok {
		return nil, domain.Invalid("csv header must contain: "+strings.Join(csvColumns, ","),
			domain.FieldError{Path: "header", Message: "missing name column"})
	}
	if _, ok := idx["price"]; !ok {
		return nil, domain.Invalid("csv header must contain: "+strings.Join(csvColumns, ","),
			domain.FieldError{Path: "header", Message: "missing price column"})
	}

	var (
		out []CSVProduct
		fe  fieldErrs
		row int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.Invalid("malformed csv: " + err.Error())
		}
		if blank(rec) {
			continue
		}
		row++
		if row > MaxCSVRows {
			return nil, domain.Invalid("csv has more than " + strconv.Itoa(MaxCSVRows) + " rows")
		}
		cell := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		prefix := strconv.Itoa(row) + "."
		p := CSVProduct{
			Name:        cell("name"),
			Description: cell("description"),
			Category:    cell("category"),
			SKU:         cell("sku"),
			Image:       cell("image"),
		}
		if p.Name == "" {
			fe.add(prefix+"name", "is required")
		}
		if price, err := decimal.NewFromString(cell("price")); err != nil {
			fe.add(prefix+"price", "must be a number")
		} else {
			validPrice(&fe, prefix+"price", price)
			p.Price = price
		}
		if v := cell("stock"); v != "" {
			n, err := strconv.Atoi(v)
			switch {
			case err != nil:
				fe.add(prefix+"stock", "must be an integer")
			case n < 0:
				fe.add(prefix+"stock", "must be >= 0")
			default:
				p.Stock = n
			}
		}
		out = append(out, p)
	}
	if err := fe.err("csv validation failed"); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.Invalid("csv has no product rows")
	}
	return out, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
