package rest

import (
	"encoding/json"
	"fmt"

	"github.com/cerke-online/backend/internal/core/firstmover"
	"github.com/cerke-online/backend/internal/core/trial"
	"github.com/cerke-online/backend/internal/game/domain"
)

// Wire tags of the move union.
const (
	typeNonTamMove   = "NonTamMove"
	typeTamMove      = "TamMove"
	typeInfAfterStep = "InfAfterStep"
)

// Wire tags of the poll unions.
const (
	typeMoveMade         = "MoveMade"
	typeNotYetDetermined = "NotYetDetermined"
	typeFinalResult      = "FinalResult"
	typeTyMok            = "TyMok"
	typeTaXot            = "TaXot"
	typeErr              = "Err"
)

// Wire tags of the matchmaking union.
const (
	typeInWaitingList       = "InWaitingList"
	typeLetTheGameBegin     = "LetTheGameBegin"
	typeRoomAlreadyAssigned = "RoomAlreadyAssigned"
)

// tokenBody carries the credential on matchmaking poll and cancel calls.
type tokenBody struct {
	AccessToken string `json:"access_token"`
}

// matchingReply is the union returned by the matchmaking endpoints.
type matchingReply struct {
	Type              string               `json:"type"`
	AccessToken       string               `json:"access_token,omitempty"`
	IsFirstMoveMyMove *firstmover.Decision `json:"is_first_move_my_move,omitempty"`
	IsIADownForMe     *bool                `json:"is_IA_down_for_me,omitempty"`
}

type cancelReply struct {
	Cancellable bool `json:"cancellable"`
}

// decisionReply is the flat response of the decision endpoints.
type decisionReply struct {
	Legal           bool         `json:"legal"`
	WhyIllegal      string       `json:"why_illegal,omitempty"`
	WaterEntryCiurl *trial.Trial `json:"water_entry_ciurl,omitempty"`
	SteppingCiurl   *trial.Trial `json:"stepping_ciurl,omitempty"`
}

// mainMessage is the tagged union submitted to /decision/main.
type mainMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`

	// TamMove fields.
	StepStyle  domain.TamStepStyle `json:"stepStyle,omitempty"`
	FirstDest  *domain.Coord       `json:"firstDest,omitempty"`
	SecondDest *domain.Coord       `json:"secondDest,omitempty"`

	// Shared by TamMove and InfAfterStep.
	Src  *domain.Coord `json:"src,omitempty"`
	Step *domain.Coord `json:"step,omitempty"`

	// InfAfterStep fields.
	PlannedDirection *domain.Coord `json:"plannedDirection,omitempty"`
}

// normalMove is the inner union of a NonTamMove.
type normalMove struct {
	Type  string             `json:"type"`
	Color *domain.Color      `json:"color,omitempty"`
	Prof  *domain.Profession `json:"prof,omitempty"`
	Src   *domain.Coord      `json:"src,omitempty"`
	Step  *domain.Coord      `json:"step,omitempty"`
	Dest  *domain.Coord      `json:"dest,omitempty"`
}

// decodeMainMessage maps the wire union onto a move descriptor.
func decodeMainMessage(data []byte) (domain.Move, error) {
	var msg mainMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode move: %w", err)
	}

	switch msg.Type {
	case typeNonTamMove:
		return decodeNormalMove(msg.Data)

	case typeTamMove:
		if msg.Src == nil || msg.FirstDest == nil || msg.SecondDest == nil {
			return nil, fmt.Errorf("decode move: TamMove is missing a square")
		}
		return domain.TamMove{
			Style:      msg.StepStyle,
			Src:        *msg.Src,
			Step:       msg.Step,
			FirstDest:  *msg.FirstDest,
			SecondDest: *msg.SecondDest,
		}, nil

	case typeInfAfterStep:
		if msg.Src == nil || msg.Step == nil || msg.PlannedDirection == nil {
			return nil, fmt.Errorf("decode move: InfAfterStep is missing a square")
		}
		return domain.SteppingMove{
			Src:              *msg.Src,
			Step:             *msg.Step,
			PlannedDirection: *msg.PlannedDirection,
		}, nil

	default:
		return nil, fmt.Errorf("decode move: unknown type %q", msg.Type)
	}
}

func decodeNormalMove(data []byte) (domain.Move, error) {
	var mv normalMove
	if err := json.Unmarshal(data, &mv); err != nil {
		return nil, fmt.Errorf("decode move: %w", err)
	}

	switch domain.MoveKind(mv.Type) {
	case domain.KindFromHand:
		if mv.Color == nil || mv.Prof == nil || mv.Dest == nil {
			return nil, fmt.Errorf("decode move: FromHand is missing a field")
		}
		if !mv.Color.Valid() || !mv.Prof.Valid() {
			return nil, fmt.Errorf("decode move: invalid piece %d %d", *mv.Color, *mv.Prof)
		}
		return domain.FromHandMove{Color: *mv.Color, Profession: *mv.Prof, Dest: *mv.Dest}, nil

	case domain.KindSrcDst:
		if mv.Src == nil || mv.Dest == nil {
			return nil, fmt.Errorf("decode move: SrcDst is missing a square")
		}
		return domain.SrcDstMove{Src: *mv.Src, Dest: *mv.Dest}, nil

	case domain.KindSrcStep:
		if mv.Src == nil || mv.Step == nil || mv.Dest == nil {
			return nil, fmt.Errorf("decode move: SrcStepDstFinite is missing a square")
		}
		return domain.SrcStepDstMove{Src: *mv.Src, Step: *mv.Step, Dest: *mv.Dest}, nil

	default:
		return nil, fmt.Errorf("decode move: unknown normal move type %q", mv.Type)
	}
}

// halfAcceptanceBody is submitted to /decision/afterhalfacceptance. A null
// dest stops at the origin.
type halfAcceptanceBody struct {
	Dest *domain.Coord `json:"dest"`
}

// finalResultMessage reports where a stepping move settled.
type finalResultMessage struct {
	Dest            domain.Coord `json:"dest"`
	WaterEntryCiurl *trial.Trial `json:"water_entry_ciurl,omitempty"`
	Thwarted        *trial.Trial `json:"thwarted_by_failing_water_entry_ciurl,omitempty"`
}

// moveMessage is a committed move as seen by the polling opponent.
type moveMessage struct {
	Type string      `json:"type"`
	Data *normalMove `json:"data,omitempty"`

	StepStyle  domain.TamStepStyle `json:"stepStyle,omitempty"`
	FirstDest  *domain.Coord       `json:"firstDest,omitempty"`
	SecondDest *domain.Coord       `json:"secondDest,omitempty"`

	Src  *domain.Coord `json:"src,omitempty"`
	Step *domain.Coord `json:"step,omitempty"`

	PlannedDirection *domain.Coord `json:"plannedDirection,omitempty"`

	WaterEntryCiurl *trial.Trial        `json:"water_entry_ciurl,omitempty"`
	SteppingCiurl   *trial.Trial        `json:"stepping_ciurl,omitempty"`
	FinalResult     *finalResultMessage `json:"finalResult,omitempty"`
}

// encodeRecord maps a ledger record onto the poll wire shape.
func encodeRecord(rec domain.MoveRecord) (*moveMessage, error) {
	switch m := rec.Move.(type) {
	case domain.FromHandMove:
		color, prof, dest := m.Color, m.Profession, m.Dest
		return &moveMessage{
			Type: typeNonTamMove,
			Data: &normalMove{Type: string(domain.KindFromHand), Color: &color, Prof: &prof, Dest: &dest},
		}, nil

	case domain.SrcDstMove:
		src, dest := m.Src, m.Dest
		return &moveMessage{
			Type:            typeNonTamMove,
			Data:            &normalMove{Type: string(domain.KindSrcDst), Src: &src, Dest: &dest},
			WaterEntryCiurl: rec.WaterEntry,
		}, nil

	case domain.SrcStepDstMove:
		src, step, dest := m.Src, m.Step, m.Dest
		return &moveMessage{
			Type:            typeNonTamMove,
			Data:            &normalMove{Type: string(domain.KindSrcStep), Src: &src, Step: &step, Dest: &dest},
			WaterEntryCiurl: rec.WaterEntry,
		}, nil

	case domain.TamMove:
		src, first, second := m.Src, m.FirstDest, m.SecondDest
		return &moveMessage{
			Type:       typeTamMove,
			StepStyle:  m.Style,
			Src:        &src,
			Step:       m.Step,
			FirstDest:  &first,
			SecondDest: &second,
		}, nil

	case domain.SteppingMove:
		src, step, planned := m.Src, m.Step, m.PlannedDirection
		msg := &moveMessage{
			Type:             typeInfAfterStep,
			Src:              &src,
			Step:             &step,
			PlannedDirection: &planned,
			SteppingCiurl:    rec.SteppingTrial,
		}
		if rec.FinalResult != nil {
			msg.FinalResult = &finalResultMessage{
				Dest:            rec.FinalResult.Dest,
				WaterEntryCiurl: rec.FinalResult.WaterEntry,
				Thwarted:        rec.FinalResult.Thwarted,
			}
		}
		return msg, nil

	default:
		return nil, fmt.Errorf("encode record: unknown move kind %s", rec.Move.Kind())
	}
}

// mainPollReply is the union returned by /poll/main.
type mainPollReply struct {
	Type    string       `json:"type"`
	Message *moveMessage `json:"message,omitempty"`
	Reason  string       `json:"reason,omitempty"`
}

// infPollReply is the union returned by /poll/inf.
type infPollReply struct {
	Type          string              `json:"type"`
	SteppingCiurl *trial.Trial        `json:"stepping_ciurl,omitempty"`
	FinalResult   *finalResultMessage `json:"finalResult,omitempty"`
	Reason        string              `json:"reason,omitempty"`
}

// whetherTyMokReply is the union returned by /poll/whethertymok.
type whetherTyMokReply struct {
	Type              string               `json:"type"`
	IsFirstMoveMyMove *firstmover.Decision `json:"is_first_move_my_move,omitempty"`
	Reason            string               `json:"reason,omitempty"`
}
