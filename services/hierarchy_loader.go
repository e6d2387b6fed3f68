package services

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tgregoire/invgov-backend/models"
	"github.com/xuri/excelize/v2"
)

// HierarchyLoader imports the organizational hierarchy from an uploaded
// spreadsheet, the same shape operations maintains by hand: one row per
// person with login, display name, title, role, theater, industry segment
// and manager.
type HierarchyLoader struct {
	store Store
}

// NewHierarchyLoader creates a spreadsheet-backed hierarchy importer
func NewHierarchyLoader(store Store) *HierarchyLoader {
	return &HierarchyLoader{store: store}
}

var roleApprovalLevels = map[string]int{
	models.RoleAE:  1,
	models.RoleDM:  2,
	models.RoleRD:  3,
	models.RoleAVP: 4,
	models.RoleGVP: 5,
}

// expected header labels, matched case-insensitively after trimming.
var hierarchyColumns = map[string]string{
	"username":         "username",
	"login":            "username",
	"employee id":      "employee_id",
	"name":             "display_name",
	"display name":     "display_name",
	"title":            "title",
	"role":             "role",
	"theater":          "theater",
	"industry segment": "industry_segment",
	"industry":         "industry_segment",
	"manager":          "manager_name",
	"manager name":     "manager_name",
	"final approver":   "final_approver",
}

// Parse reads the first sheet of an xlsx workbook into hierarchy entries.
// Rows without a username are skipped and counted rather than failing the
// import.
func (l *HierarchyLoader) Parse(reader io.Reader) ([]models.HierarchyEntry, int, error) {
	workbook, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, 0, errors.Wrap(err, "opening hierarchy workbook")
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, errors.New("hierarchy workbook has no sheets")
	}

	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading sheet %s", sheets[0])
	}
	if len(rows) < 2 {
		return nil, 0, errors.New("hierarchy sheet has no data rows")
	}

	columnIndex := make(map[string]int)
	for i, header := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(header))
		if field, ok := hierarchyColumns[key]; ok {
			columnIndex[field] = i
		}
	}
	if _, ok := columnIndex["username"]; !ok {
		return nil, 0, errors.New("hierarchy sheet is missing a username column")
	}

	cell := func(row []string, field string) string {
		index, ok := columnIndex[field]
		if !ok || index >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[index])
	}

	entries := make([]models.HierarchyEntry, 0, len(rows)-1)
	skipped := 0

	for rowNumber, row := range rows[1:] {
		username := strings.ToLower(cell(row, "username"))
		if username == "" {
			skipped++
			logrus.WithFields(logrus.Fields{
				"component": "HierarchyLoader",
				"row":       rowNumber + 2,
			}).Warn("Skipping hierarchy row without username")
			continue
		}

		entry := models.HierarchyEntry{
			Username:    username,
			DisplayName: cell(row, "display_name"),
			Role:        strings.ToUpper(cell(row, "role")),
		}
		if entry.DisplayName == "" {
			entry.DisplayName = username
		}
		if entry.Role == "" {
			entry.Role = models.RoleUser
		}
		entry.ApprovalLevel = roleApprovalLevels[entry.Role]

		if value := cell(row, "employee_id"); value != "" {
			if id, err := strconv.ParseInt(value, 10, 64); err == nil {
				entry.EmployeeID = &id
			}
		}
		if value := cell(row, "title"); value != "" {
			entry.Title = &value
		}
		if value := cell(row, "theater"); value != "" {
			entry.Theater = &value
		}
		if value := cell(row, "industry_segment"); value != "" {
			entry.IndustrySegment = &value
		}
		if value := cell(row, "manager_name"); value != "" {
			entry.ManagerName = &value
		}
		if value := strings.ToLower(cell(row, "final_approver")); value == "yes" || value == "true" || value == "y" || value == "1" {
			entry.IsFinalApprover = true
		}

		entries = append(entries, entry)
	}

	return entries, skipped, nil
}

// Import parses the workbook and swaps the cached hierarchy for its contents.
// At most one entry may keep the final-approver flag; extra flags past the
// first are dropped with a warning.
func (l *HierarchyLoader) Import(reader io.Reader) (int, int, error) {
	entries, skipped, err := l.Parse(reader)
	if err != nil {
		return 0, 0, err
	}

	finalSeen := false
	for i := range entries {
		if !entries[i].IsFinalApprover {
			continue
		}
		if finalSeen {
			logrus.WithFields(logrus.Fields{
				"component": "HierarchyLoader",
				"username":  entries[i].Username,
			}).Warn("Multiple final approvers in import, keeping only the first")
			entries[i].IsFinalApprover = false
			continue
		}
		finalSeen = true
	}

	if err := l.store.ReplaceUsers(entries); err != nil {
		return 0, 0, err
	}

	logrus.WithFields(logrus.Fields{
		"component": "HierarchyLoader",
		"imported":  len(entries),
		"skipped":   skipped,
	}).Info("Imported hierarchy spreadsheet")

	return len(entries), skipped, nil
}
