package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/CortexTrade/models"
)

type CSVManager struct {
	basePath string
}

func NewCSVManager(basePath string) *CSVManager {
	return &CSVManager{
		basePath: basePath,
	}
}

// WriteDecisionsCSV 将决策记录导出为 CSV, 返回文件路径
func (c *CSVManager) WriteDecisionsCSV(decisions []models.Decision) (string, error) {
	// 目录结构: {base}/csv/decisions/
	dirPath := filepath.Join(c.basePath, "csv", "decisions")
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	filename := fmt.Sprintf("decisions_%d_records_%s.csv", len(decisions), time.Now().Format("20060102_150405"))
	filePath := filepath.Join(dirPath, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	headers := []string{
		"DecidedAt", "CycleID", "Symbol", "Price", "Action",
		"Buy", "Sell", "Hold", "PHS", "TxHash",
	}
	if err := writer.Write(headers); err != nil {
		return "", fmt.Errorf("failed to write headers: %w", err)
	}

	for _, d := range decisions {
		price := ""
		if d.Price != nil {
			price = strconv.FormatFloat(*d.Price, 'f', -1, 64)
		}
		row := []string{
			d.DecidedAt.UTC().Format(time.RFC3339),
			d.CycleID,
			d.Symbol,
			price,
			string(d.Action),
			strconv.Itoa(d.Votes.Buy),
			strconv.Itoa(d.Votes.Sell),
			strconv.Itoa(d.Votes.Hold),
			strconv.FormatFloat(d.PHS, 'f', 2, 64),
			d.TxHash,
		}
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return filePath, nil
}

// ParseHoldingsCSV 读取 symbol,quantity,price 行, 首行为表头时跳过
func ParseHoldingsCSV(r io.Reader) ([]models.Holding, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var out []models.Holding
	line := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "symbol") {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("line %d: want symbol,quantity,price", line)
		}
		symbol := strings.TrimSpace(row[0])
		if symbol == "" {
			return nil, fmt.Errorf("line %d: empty symbol", line)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid quantity %q", line, row[1])
		}
		if qty < 0 {
			return nil, fmt.Errorf("line %d: negative quantity", line)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid price %q", line, row[2])
		}
		if price < 0 {
			return nil, fmt.Errorf("line %d: negative purchase price", line)
		}
		out = append(out, models.Holding{Symbol: symbol, Quantity: qty, PurchasePrice: price})
	}
	if len(out) == 0 {
		return nil, errors.New("no holdings in upload")
	}
	return out, nil
}
