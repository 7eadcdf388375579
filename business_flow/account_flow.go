package businessflow

import (
	"context"
	"log"
	"strings"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	"github.com/peykaro/whatsapp-dispatch/models"
	"github.com/peykaro/whatsapp-dispatch/repository"
)

// AccountFlow manages WhatsApp sender accounts. Saves go through the
// normalizing repository write so each default flag stays on at most
// one account.
type AccountFlow interface {
	SaveAccount(ctx context.Context, req *dto.SaveAccountRequest) (*models.WhatsAppAccount, error)
	GetAccount(ctx context.Context, name string) (*models.WhatsAppAccount, error)
}

type AccountFlowImpl struct {
	accounts repository.WhatsAppAccountRepository
	logger   *log.Logger
}

func NewAccountFlow(accounts repository.WhatsAppAccountRepository, logger *log.Logger) AccountFlow {
	return &AccountFlowImpl{accounts: accounts, logger: logger}
}

// SaveAccount creates or updates the named account. An existing account
// with the same name is updated in place.
func (f *AccountFlowImpl) SaveAccount(ctx context.Context, req *dto.SaveAccountRequest) (*models.WhatsAppAccount, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewBusinessError("ACCOUNT_NAME_REQUIRED", "Account name is required", nil)
	}

	account, err := f.accounts.ByName(ctx, name)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to lookup account", err)
	}
	if account == nil {
		account = &models.WhatsAppAccount{Name: name}
	}

	account.APIBase = strings.TrimSpace(req.APIBase)
	if req.APIKey != "" {
		account.APIKey = req.APIKey
	}
	account.Instance = strings.TrimSpace(req.Instance)
	account.TextEndpointOverride = req.TextEndpointOverride
	account.MediaEndpointOverride = req.MediaEndpointOverride
	account.Enabled = req.Enabled
	account.IsDefault = req.IsDefault
	account.DefaultOutgoing = req.DefaultOutgoing
	account.DefaultIncoming = req.DefaultIncoming

	if err := f.accounts.SaveNormalized(ctx, account); err != nil {
		return nil, NewBusinessError("ACCOUNT_SAVE_FAILED", "Failed to save account", err)
	}
	if f.logger != nil {
		f.logger.Printf("account flow: saved account %s (outgoing default=%t)", account.Name, account.DefaultOutgoing)
	}
	return account, nil
}

func (f *AccountFlowImpl) GetAccount(ctx context.Context, name string) (*models.WhatsAppAccount, error) {
	account, err := f.accounts.ByName(ctx, name)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to lookup account", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}
