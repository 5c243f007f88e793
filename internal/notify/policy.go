// Package notify decides who hears about a scheduling event and delivers the
// resulting push message. Delivery is best-effort: nothing here fails the
// mutation that produced the event.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/events"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// NotifiedEvents are the event types the policy can turn into a message.
var NotifiedEvents = []events.EventType{
	events.EventUnavailabilityCreated,
	events.EventLessonProposed,
	events.EventLessonConfirmed,
	events.EventLessonCancelled,
	events.EventTardinessAlert,
}

// UserReader is the slice of the user store the policy needs.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Instruction is a fully rendered push message for one recipient.
type Instruction struct {
	Type        MessageType       `json:"type"`
	RecipientID string            `json:"recipient_id"`
	Handle      string            `json:"handle"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data"`
}

// Policy maps events to instructions.
type Policy struct {
	users       UserReader
	catalog     *Catalog
	clickAction string
}

// NewPolicy builds a policy. An empty clickAction defaults to "/".
func NewPolicy(users UserReader, catalog *Catalog, clickAction string) *Policy {
	if clickAction == "" {
		clickAction = "/"
	}
	return &Policy{users: users, catalog: catalog, clickAction: clickAction}
}

// Decide returns the instruction for ev, or ok=false when nobody should be
// notified: the event is not notifiable, the actor has no partner, or the
// recipient is unknown or has no delivery handle.
func (p *Policy) Decide(ctx context.Context, ev events.Event) (Instruction, bool, error) {
	var (
		mt          MessageType
		recipientID string
		at          time.Time
		data        MessageData
		subjectKey  = "lessonId"
		ok          bool
		err         error
	)

	switch ev.Type {
	case events.EventUnavailabilityCreated:
		payload, isRule := ev.Payload.(events.UnavailabilityPayload)
		if !isRule {
			return Instruction{}, false, payloadError(ev)
		}
		mt, subjectKey, at = MessageUnavailabilityCreated, "ruleId", payload.Rule.Start
		recipientID, ok, err = p.partnerOf(ctx, payload.Rule.UserID)
	case events.EventLessonProposed, events.EventLessonConfirmed, events.EventLessonCancelled:
		payload, isLesson := ev.Payload.(events.LessonPayload)
		if !isLesson {
			return Instruction{}, false, payloadError(ev)
		}
		lesson := payload.Lesson
		at = lesson.Start
		switch ev.Type {
		case events.EventLessonProposed:
			mt = MessageLessonProposed
			recipientID, ok, err = p.partnerOf(ctx, lesson.ProposedBy)
		case events.EventLessonConfirmed:
			mt = MessageLessonConfirmed
			recipientID, ok = lesson.ProposedBy, true
		default:
			mt = MessageLessonCancelled
			if lesson.CancellationReason != nil {
				data.Reason = *lesson.CancellationReason
			}
			if lesson.CancelledBy != nil {
				recipientID, ok, err = p.partnerOf(ctx, *lesson.CancelledBy)
			} else {
				recipientID, ok, err = p.partnerOf(ctx, lesson.ProposedBy)
			}
		}
	case events.EventTardinessAlert:
		payload, isAlert := ev.Payload.(events.TardinessPayload)
		if !isAlert {
			return Instruction{}, false, payloadError(ev)
		}
		mt, at, data.Sender = MessageTardinessAlert, payload.Lesson.Start, payload.SenderName
		recipientID, ok, err = p.partnerOf(ctx, ev.Actor.UserID)
	default:
		return Instruction{}, false, nil
	}
	if err != nil || !ok {
		return Instruction{}, false, err
	}

	recipient, err := p.users.GetByID(ctx, recipientID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return Instruction{}, false, nil
	}
	if err != nil {
		return Instruction{}, false, fmt.Errorf("load recipient %s: %w", recipientID, err)
	}
	if !recipient.CanNotify() {
		return Instruction{}, false, nil
	}

	loc, err := timezone.LoadZone(recipient.Timezone)
	if err != nil {
		return Instruction{}, false, fmt.Errorf("recipient %s zone: %w", recipientID, err)
	}
	if data.Time, err = timezone.FormatDisplay(at, loc, p.catalog.Layout()); err != nil {
		return Instruction{}, false, err
	}
	title, body, err := p.catalog.Render(mt, data)
	if err != nil {
		return Instruction{}, false, err
	}

	return Instruction{
		Type:        mt,
		RecipientID: recipientID,
		Handle:      *recipient.NotificationHandle,
		Title:       title,
		Body:        body,
		Data: map[string]string{
			"type":        string(mt),
			subjectKey:    ev.SubjectID,
			"clickAction": p.clickAction,
		},
	}, true, nil
}

func (p *Policy) partnerOf(ctx context.Context, userID string) (string, bool, error) {
	user, err := p.users.GetByID(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load user %s: %w", userID, err)
	}
	if !user.HasPartner() {
		return "", false, nil
	}
	return *user.PartnerID, true, nil
}

func payloadError(ev events.Event) error {
	return fmt.Errorf("event %s: unexpected payload %T", ev.Type, ev.Payload)
}
