package businessflow

import (
	"context"
	"log"

	"github.com/peykaro/whatsapp-dispatch/models"
	"github.com/peykaro/whatsapp-dispatch/repository"
	"github.com/peykaro/whatsapp-dispatch/utils"
)

// conventionalPhoneFields are checked, in order, when neither an
// explicit recipient nor a configured field yields a number.
var conventionalPhoneFields = []string{
	"contact_mobile",
	"mobile_no",
	"mobile",
	"phone",
	"contact_phone",
}

// partyLinkFields name document fields that point at a linked party
// record whose contacts may carry WhatsApp numbers. Order matters,
// earlier sources win the dedup pass.
var partyLinkFields = []struct {
	field   string
	doctype string
}{
	{"customer", "Customer"},
	{"supplier", "Supplier"},
	{"lead", "Lead"},
	{"prospect", "Prospect"},
}

// RecipientResolver turns a document snapshot into the list of phone
// numbers a message should go to. Resolution is additive: each source
// contributes candidates and duplicates collapse on their digit-only
// form at the end.
type RecipientResolver struct {
	contacts  repository.ContactRepository
	employees repository.EmployeeRepository
	logger    *log.Logger
}

func NewRecipientResolver(contacts repository.ContactRepository, employees repository.EmployeeRepository, logger *log.Logger) *RecipientResolver {
	return &RecipientResolver{contacts: contacts, employees: employees, logger: logger}
}

// Resolve collects recipient numbers for the document. Every source
// contributes: the explicit argument, the rule's configured field, the
// conventional phone fields, party links and employee fields all feed
// the same candidate list before the dedup pass. An empty result is a
// resolution failure the caller must log, not an error.
func (r *RecipientResolver) Resolve(ctx context.Context, doc *DocumentSnapshot, explicit, configuredField string) []string {
	var candidates []string

	if explicit != "" {
		candidates = append(candidates, utils.SplitCandidateNumbers(explicit)...)
	}

	if configuredField != "" && doc != nil {
		candidates = append(candidates, r.fromConfiguredField(ctx, doc.Get(configuredField))...)
	}

	if doc != nil {
		for _, field := range conventionalPhoneFields {
			candidates = append(candidates, utils.SplitCandidateNumbers(doc.Get(field))...)
		}

		candidates = append(candidates, r.fromPartyLinks(ctx, doc)...)
		candidates = append(candidates, r.fromEmployeeFields(ctx, doc)...)
	}

	resolved := utils.DedupeNumbers(candidates)
	if len(resolved) == 0 && r.logger != nil {
		name := ""
		if doc != nil {
			name = doc.Doctype + "/" + doc.Name
		}
		r.logger.Printf("recipient resolver: no number found for %s", name)
	}
	return resolved
}

// fromConfiguredField interprets the hinted field value. Phone-looking
// content is used directly, and the value is also tried as a contact
// or employee reference so every interpretation contributes.
func (r *RecipientResolver) fromConfiguredField(ctx context.Context, value string) []string {
	if value == "" {
		return nil
	}
	out := utils.SplitCandidateNumbers(value)
	if r.contacts != nil {
		contact, err := r.contacts.ByName(ctx, value)
		if err == nil && contact != nil {
			out = append(out, contactNumbers(contact)...)
		}
	}
	if r.employees != nil {
		emp, err := r.employees.ByName(ctx, value)
		if err == nil && emp != nil && emp.CellNumber != nil {
			out = append(out, utils.SplitCandidateNumbers(*emp.CellNumber)...)
		}
	}
	return out
}

// fromPartyLinks follows the party_type/party pair and the known link
// fields to contacts of the linked record. An Employee party resolves
// to the employee cell number instead.
func (r *RecipientResolver) fromPartyLinks(ctx context.Context, doc *DocumentSnapshot) []string {
	type link struct {
		doctype string
		name    string
	}
	var links []link

	if pt, p := doc.Get("party_type"), doc.Get("party"); pt != "" && p != "" {
		links = append(links, link{doctype: pt, name: p})
	}
	for _, pl := range partyLinkFields {
		if v := doc.Get(pl.field); v != "" {
			links = append(links, link{doctype: pl.doctype, name: v})
		}
	}

	var out []string
	for _, l := range links {
		if l.doctype == "Employee" {
			if r.employees == nil {
				continue
			}
			emp, err := r.employees.ByName(ctx, l.name)
			if err == nil && emp != nil && emp.CellNumber != nil {
				out = append(out, utils.SplitCandidateNumbers(*emp.CellNumber)...)
			}
			continue
		}
		if r.contacts == nil {
			continue
		}
		contacts, err := r.contacts.ListLinkedTo(ctx, l.doctype, l.name)
		if err != nil {
			continue
		}
		for _, c := range contacts {
			out = append(out, contactNumbers(c)...)
		}
	}
	return out
}

func (r *RecipientResolver) fromEmployeeFields(ctx context.Context, doc *DocumentSnapshot) []string {
	if r.employees == nil {
		return nil
	}
	var out []string
	if v := doc.Get("employee"); v != "" {
		emp, err := r.employees.ByName(ctx, v)
		if err == nil && emp != nil && emp.CellNumber != nil {
			out = append(out, utils.SplitCandidateNumbers(*emp.CellNumber)...)
		}
	}
	if v := doc.Get("employee_name"); v != "" {
		emp, err := r.employees.ByEmployeeName(ctx, v)
		if err == nil && emp != nil && emp.CellNumber != nil {
			out = append(out, utils.SplitCandidateNumbers(*emp.CellNumber)...)
		}
	}
	return out
}

// contactNumbers picks a contact's numbers, preferring phones flagged
// as WhatsApp-verified over the rest.
func contactNumbers(c *models.Contact) []string {
	var whatsapp, others []string
	for _, p := range c.Phones {
		if !utils.LooksLikePhone(p.Number) {
			continue
		}
		n := utils.NormalizePhone(p.Number)
		if p.IsWhatsApp {
			whatsapp = append(whatsapp, n)
		} else {
			others = append(others, n)
		}
	}
	if len(whatsapp) > 0 {
		return whatsapp
	}
	if c.MobileNo != nil {
		others = append(utils.SplitCandidateNumbers(*c.MobileNo), others...)
	}
	if c.PhoneNo != nil {
		others = append(others, utils.SplitCandidateNumbers(*c.PhoneNo)...)
	}
	return others
}
