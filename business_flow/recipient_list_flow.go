package businessflow

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	"github.com/peykaro/whatsapp-dispatch/models"
	"github.com/peykaro/whatsapp-dispatch/repository"
	"github.com/peykaro/whatsapp-dispatch/utils"
)

// RecipientListFlow manages the audiences that bulk sends target.
// Numbers are normalized on the way in; an exclusion list keeps
// manually removed numbers out across refreshes and re-imports.
type RecipientListFlow interface {
	CreateList(ctx context.Context, name string, sourceDoctype string) (*models.RecipientList, error)
	// ImportXLSX reads a spreadsheet whose first sheet has a header row.
	// A "mobile" or "number" column is required; "name" and any other
	// columns become per-recipient template data.
	ImportXLSX(ctx context.Context, listName string, r io.Reader) (*dto.ImportRecipientsResponse, error)
	// Refresh pulls numbers from contacts linked to the list's source
	// document type
	Refresh(ctx context.Context, listName string) (*dto.ImportRecipientsResponse, error)
	// RemoveRecipient drops the entry and records the number as
	// excluded so later imports do not resurrect it
	RemoveRecipient(ctx context.Context, listName, number string) error
}

type RecipientListFlowImpl struct {
	lists    repository.RecipientListRepository
	contacts repository.ContactRepository
	logger   *log.Logger
}

func NewRecipientListFlow(
	lists repository.RecipientListRepository,
	contacts repository.ContactRepository,
	logger *log.Logger,
) RecipientListFlow {
	return &RecipientListFlowImpl{lists: lists, contacts: contacts, logger: logger}
}

func (f *RecipientListFlowImpl) CreateList(ctx context.Context, name string, sourceDoctype string) (*models.RecipientList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewBusinessError("LIST_NAME_REQUIRED", "Recipient list name is required", nil)
	}
	existing, err := f.lists.ByName(ctx, name)
	if err != nil {
		return nil, NewBusinessError("LIST_LOOKUP_FAILED", "Failed to lookup recipient list", err)
	}
	if existing != nil {
		return nil, NewBusinessError("LIST_EXISTS", "A recipient list with this name already exists", nil)
	}
	list := &models.RecipientList{Name: name}
	if sourceDoctype != "" {
		list.SourceDoctype = &sourceDoctype
	}
	if err := f.lists.Save(ctx, list); err != nil {
		return nil, NewBusinessError("LIST_SAVE_FAILED", "Failed to create recipient list", err)
	}
	return list, nil
}

func (f *RecipientListFlowImpl) loadList(ctx context.Context, listName string) (*models.RecipientList, error) {
	list, err := f.lists.ByName(ctx, listName)
	if err != nil {
		return nil, NewBusinessError("LIST_LOOKUP_FAILED", "Failed to lookup recipient list", err)
	}
	if list == nil {
		return nil, ErrRecipientListNotFound
	}
	return list, nil
}

var numberHeaders = []string{"mobile", "number", "mobile_no", "phone", "whatsapp"}

func (f *RecipientListFlowImpl) ImportXLSX(ctx context.Context, listName string, r io.Reader) (*dto.ImportRecipientsResponse, error) {
	list, err := f.loadList(ctx, listName)
	if err != nil {
		return nil, err
	}

	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, NewBusinessError("IMPORT_PARSE_FAILED", "Failed to read spreadsheet", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewBusinessError("IMPORT_EMPTY", "Spreadsheet has no sheets", nil)
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, NewBusinessError("IMPORT_PARSE_FAILED", "Failed to read sheet rows", err)
	}
	if len(rows) < 2 {
		return nil, NewBusinessError("IMPORT_EMPTY", "Spreadsheet has no data rows", nil)
	}

	header := make([]string, len(rows[0]))
	numberCol := -1
	nameCol := -1
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		header[i] = key
		if numberCol < 0 {
			for _, candidate := range numberHeaders {
				if key == candidate {
					numberCol = i
					break
				}
			}
		}
		if nameCol < 0 && (key == "name" || key == "display_name") {
			nameCol = i
		}
	}
	if numberCol < 0 {
		return nil, NewBusinessError("IMPORT_NO_NUMBER_COLUMN", "Spreadsheet needs a mobile or number column", nil)
	}

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []*models.RecipientListEntry
	skipped := 0
	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		number := utils.NormalizePhone(cell(row, numberCol))
		if !utils.LooksLikePhone(number) || list.IsExcluded(number) || seen[number] {
			skipped++
			continue
		}
		seen[number] = true

		entry := &models.RecipientListEntry{ListID: list.ID, Number: number}
		if name := cell(row, nameCol); name != "" {
			entry.DisplayName = &name
		}
		data := models.AuxData{}
		for i, key := range header {
			if i == numberCol || i == nameCol || key == "" {
				continue
			}
			if v := cell(row, i); v != "" {
				data[key] = v
			}
		}
		if len(data) > 0 {
			entry.Data = data
		}
		entries = append(entries, entry)
	}

	if len(entries) > 0 {
		if err := f.lists.UpsertEntries(ctx, list.ID, entries); err != nil {
			return nil, NewBusinessError("IMPORT_SAVE_FAILED", "Failed to save imported recipients", err)
		}
	}
	f.logger.Printf("recipient list %q: imported %d, skipped %d", list.Name, len(entries), skipped)
	return &dto.ImportRecipientsResponse{ListName: list.Name, Imported: len(entries), Skipped: skipped}, nil
}

func (f *RecipientListFlowImpl) Refresh(ctx context.Context, listName string) (*dto.ImportRecipientsResponse, error) {
	list, err := f.loadList(ctx, listName)
	if err != nil {
		return nil, err
	}
	if list.SourceDoctype == nil || *list.SourceDoctype == "" {
		return nil, NewBusinessError("LIST_NOT_LINKED", "Recipient list has no source document type", nil)
	}

	contacts, err := f.contacts.ByFilter(ctx, models.ContactFilter{LinkDoctype: list.SourceDoctype}, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LOOKUP_FAILED", "Failed to load linked contacts", err)
	}

	var entries []*models.RecipientListEntry
	skipped := 0
	seen := make(map[string]bool)
	for _, contact := range contacts {
		number := utils.NormalizePhone(contact.BestNumber())
		if !utils.LooksLikePhone(number) || list.IsExcluded(number) || seen[number] {
			skipped++
			continue
		}
		seen[number] = true
		entry := &models.RecipientListEntry{ListID: list.ID, Number: number}
		if contact.FullName != "" {
			entry.DisplayName = utils.ToPtr(contact.FullName)
		}
		entries = append(entries, entry)
	}

	if len(entries) > 0 {
		if err := f.lists.UpsertEntries(ctx, list.ID, entries); err != nil {
			return nil, NewBusinessError("REFRESH_SAVE_FAILED", "Failed to save refreshed recipients", err)
		}
	}
	f.logger.Printf("recipient list %q: refreshed %d from %s contacts, skipped %d", list.Name, len(entries), *list.SourceDoctype, skipped)
	return &dto.ImportRecipientsResponse{ListName: list.Name, Imported: len(entries), Skipped: skipped}, nil
}

func (f *RecipientListFlowImpl) RemoveRecipient(ctx context.Context, listName, number string) error {
	list, err := f.loadList(ctx, listName)
	if err != nil {
		return err
	}
	number = utils.NormalizePhone(number)
	if number == "" {
		return ErrInvalidRecipient
	}
	if err := f.lists.RemoveEntry(ctx, list.ID, number); err != nil {
		return NewBusinessError("REMOVE_FAILED", "Failed to remove recipient", err)
	}
	if !list.IsExcluded(number) {
		list.ExcludedNumbers = append(list.ExcludedNumbers, number)
		if err := f.lists.Update(ctx, list); err != nil {
			return NewBusinessError("LIST_SAVE_FAILED", "Failed to record exclusion", err)
		}
	}
	return nil
}
