package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	linkapplication "adreel/contexts/ads-accounts/link-service/application"
	linkerrors "adreel/contexts/ads-accounts/link-service/domain/errors"
	paymentapplication "adreel/contexts/billing/payment-ledger/application"
	paymententities "adreel/contexts/billing/payment-ledger/domain/entities"
	paymenterrors "adreel/contexts/billing/payment-ledger/domain/errors"
	paymentports "adreel/contexts/billing/payment-ledger/ports"
	webhookerrors "adreel/contexts/billing/webhook-reconciler/domain/errors"
	webhookports "adreel/contexts/billing/webhook-reconciler/ports"
	"adreel/contexts/campaign-lifecycle/campaign-service/application/commands"
	campaignerrors "adreel/contexts/campaign-lifecycle/campaign-service/domain/errors"
	campaignports "adreel/contexts/campaign-lifecycle/campaign-service/ports"
)

// Cross-context calls go through these adapters so no context imports
// another context's packages.

type paymentGuard struct {
	payments paymentports.PaymentRepository
}

func (g paymentGuard) HasPaidPayment(ctx context.Context, campaignID string) (bool, error) {
	return g.payments.HasPaidPayment(ctx, strings.TrimSpace(campaignID))
}

// campaignSettlement withdraws a campaign whose last PAID payment was
// refunded. A campaign that no longer exists has nothing to withdraw.
type campaignSettlement struct {
	withdraw commands.WithdrawUnpaidUseCase
}

func (c campaignSettlement) PaymentRevoked(ctx context.Context, campaignID string) (bool, error) {
	result, err := c.withdraw.Execute(ctx, campaignID)
	if errors.Is(err, campaignerrors.ErrCampaignNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return result.Applied, nil
}

type campaignCatalog struct {
	campaigns campaignports.CampaignRepository
}

func (c campaignCatalog) GetCampaign(ctx context.Context, campaignID string) (paymentports.CampaignSummary, error) {
	campaign, err := c.campaigns.GetCampaign(ctx, campaignID)
	if errors.Is(err, campaignerrors.ErrCampaignNotFound) {
		return paymentports.CampaignSummary{}, paymenterrors.ErrCampaignNotFound
	}
	if err != nil {
		return paymentports.CampaignSummary{}, err
	}
	return paymentports.CampaignSummary{
		CampaignID: campaign.CampaignID,
		UserID:     campaign.UserID,
		Title:      campaign.ClipTitle,
		Status:     string(campaign.Status),
	}, nil
}

type clientAccounts struct {
	links linkapplication.Service
}

// ResolveClientAccount only looks the account up. Accounts are opened
// through the onboarding route, never as a side effect of a campaign.
func (c clientAccounts) ResolveClientAccount(ctx context.Context, userID string) (string, error) {
	account, err := c.links.ClientAccount(ctx, userID)
	if errors.Is(err, linkerrors.ErrClientAccountNotFound) {
		return "", fmt.Errorf("%w: %v", campaignerrors.ErrClientAccountNotFound, err)
	}
	if err != nil {
		return "", err
	}
	return account.ClientAccountID, nil
}

type webhookLedger struct {
	ledger paymentapplication.Service
}

func (l webhookLedger) MarkPaidBySession(ctx context.Context, userID string, sessionID string, intentID string) ([]webhookports.PaymentRef, error) {
	payments, err := l.ledger.MarkPaidBySession(ctx, userID, sessionID, intentID)
	return paymentRefs(payments), mapLedgerError(err)
}

func (l webhookLedger) MarkPaidByIntent(ctx context.Context, intentID string, hint webhookports.PaymentHint) ([]webhookports.PaymentRef, error) {
	payments, err := l.ledger.MarkPaidByIntent(ctx, intentID, paymentHint(hint))
	return paymentRefs(payments), mapLedgerError(err)
}

func (l webhookLedger) MarkFailed(ctx context.Context, intentID string, reason string, hint webhookports.PaymentHint) ([]webhookports.PaymentRef, error) {
	payments, err := l.ledger.MarkFailed(ctx, intentID, reason, paymentHint(hint))
	return paymentRefs(payments), mapLedgerError(err)
}

func (l webhookLedger) AttachInvoice(ctx context.Context, intentID string, invoiceNumber string, invoiceURL string) (int, error) {
	changed, err := l.ledger.AttachInvoice(ctx, intentID, invoiceNumber, invoiceURL)
	return changed, mapLedgerError(err)
}

type campaignQueue struct {
	status commands.ChangeStatusUseCase
}

// QueuePaid runs without an actor: the processor, not a user, proved payment.
func (q campaignQueue) QueuePaid(ctx context.Context, campaignID string) (bool, error) {
	result, err := q.status.Execute(ctx, commands.ChangeStatusCommand{
		CampaignID: campaignID,
		Action:     commands.StatusActionQueuePaid,
	})
	if errors.Is(err, campaignerrors.ErrCampaignNotFound) {
		return false, webhookerrors.ErrCampaignNotFound
	}
	if err != nil {
		return false, err
	}
	return result.Applied, nil
}

func paymentHint(hint webhookports.PaymentHint) paymententities.PaymentHint {
	return paymententities.PaymentHint{
		UserID:      hint.UserID,
		CampaignIDs: append([]string(nil), hint.CampaignIDs...),
	}
}

func paymentRefs(payments []paymententities.Payment) []webhookports.PaymentRef {
	if len(payments) == 0 {
		return nil
	}
	refs := make([]webhookports.PaymentRef, 0, len(payments))
	for _, payment := range payments {
		refs = append(refs, webhookports.PaymentRef{
			PaymentID:  payment.PaymentID,
			CampaignID: payment.CampaignID,
			Status:     string(payment.Status),
		})
	}
	return refs
}

func mapLedgerError(err error) error {
	if errors.Is(err, paymenterrors.ErrPaymentNotFound) {
		return fmt.Errorf("%w: %v", webhookerrors.ErrPaymentNotFound, err)
	}
	return err
}
