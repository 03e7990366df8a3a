package service

import (
	"context"
	"log"

	"aether/internal/models"
	"aether/internal/realtime"
	"aether/internal/repository"
)

// Notifier fans settlement and family events out to the realtime hub
// and, where the parent opted in, to email. Email sends happen in the
// background so a slow SES call never delays a payout response.
type Notifier struct {
	hub    *realtime.Hub
	emails *EmailService
}

// NewNotifier creates a notifier
func NewNotifier(hub *realtime.Hub, emails *EmailService) *Notifier {
	return &Notifier{hub: hub, emails: emails}
}

// VerificationPending notifies a parent that a proof awaits review
func (n *Notifier) VerificationPending(link *models.FamilyLink, childName string, v *models.PendingVerification) {
	n.hub.Publish(link.ParentID, realtime.Event{
		Type: realtime.EventVerificationPending,
		Payload: map[string]interface{}{
			"verification_id": v.ID,
			"child_name":      childName,
			"quest_name":      v.QuestName,
			"tokens":          v.Tokens,
		},
	})

	if link.EmailNotificationsEnabled && link.ParentEmail != "" {
		go func() {
			if err := n.emails.SendVerificationPendingEmail(context.Background(), link.ParentEmail, childName, v.QuestName); err != nil {
				log.Printf("Failed to send review email: %v", err)
			}
		}()
	}
}

// Settled notifies both sides of a completed payout. parentID is nil
// when the payout settled for a child with no active family link, in
// which case only the child hears about it.
func (n *Notifier) Settled(parentID *int64, link *models.FamilyLink, childName string, result *repository.SettlementResult) {
	n.hub.Publish(result.ChildID, realtime.Event{
		Type: realtime.EventQuestCompleted,
		Payload: map[string]interface{}{
			"quest_name":     result.QuestName,
			"tokens":         result.Tokens,
			"new_balance":    result.NewBalance,
			"current_streak": result.CurrentStreak,
			"streak_bonus":   result.StreakBonus,
		},
	})
	n.hub.Publish(result.ChildID, realtime.Event{
		Type:    realtime.EventBalanceUpdated,
		Payload: map[string]interface{}{"balance": result.NewBalance},
	})
	if parentID != nil {
		n.hub.Publish(*parentID, realtime.Event{
			Type: realtime.EventQuestCompleted,
			Payload: map[string]interface{}{
				"child_name": childName,
				"quest_name": result.QuestName,
				"tokens":     result.Tokens,
			},
		})
	}

	if link != nil && link.EmailNotificationsEnabled && link.ParentEmail != "" {
		go func() {
			if err := n.emails.SendQuestCompletedEmail(context.Background(), link.ParentEmail, childName, result.QuestName, result.Tokens); err != nil {
				log.Printf("Failed to send completion email: %v", err)
			}
		}()
	}
}

// Rejected notifies a child their submission was turned down
func (n *Notifier) Rejected(childID int64, questName string) {
	n.hub.Publish(childID, realtime.Event{
		Type: realtime.EventVerificationReviewed,
		Payload: map[string]interface{}{
			"quest_name": questName,
			"approved":   false,
		},
	})
}

// BonusGranted notifies a child of a parent bonus
func (n *Notifier) BonusGranted(childID int64, amount, newBalance int) {
	n.hub.Publish(childID, realtime.Event{
		Type: realtime.EventBonusGranted,
		Payload: map[string]interface{}{
			"amount":      amount,
			"new_balance": newBalance,
		},
	})
	n.hub.Publish(childID, realtime.Event{
		Type:    realtime.EventBalanceUpdated,
		Payload: map[string]interface{}{"balance": newBalance},
	})
}

// BalanceUpdated notifies a child their balance changed
func (n *Notifier) BalanceUpdated(childID int64, newBalance int) {
	n.hub.Publish(childID, realtime.Event{
		Type:    realtime.EventBalanceUpdated,
		Payload: map[string]interface{}{"balance": newBalance},
	})
}

// ChildLinked notifies a parent their invite code was claimed
func (n *Notifier) ChildLinked(parentID int64, parentEmail, childName string, emailEnabled bool) {
	n.hub.Publish(parentID, realtime.Event{
		Type:    realtime.EventChildLinked,
		Payload: map[string]interface{}{"child_name": childName},
	})

	if emailEnabled && parentEmail != "" {
		go func() {
			if err := n.emails.SendChildLinkedEmail(context.Background(), parentEmail, childName); err != nil {
				log.Printf("Failed to send linked email: %v", err)
			}
		}()
	}
}
