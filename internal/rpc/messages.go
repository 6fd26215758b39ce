package rpc

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// CreateReservationRequest mirrors the REST create body.
//
//	message CreateReservationRequest {
//	  uint64 content_schedule_id = 1;
//	  string requested_at = 2;
//	  int32 adult_count = 3;
//	  int32 child_count = 4;
//	}
type CreateReservationRequest struct {
	ContentScheduleID uint64
	RequestedAt       string
	AdultCount        int32
	ChildCount        int32
}

func (m *CreateReservationRequest) MarshalWire() []byte {
	var b []byte
	b = AppendUint64(b, 1, m.ContentScheduleID)
	b = AppendString(b, 2, m.RequestedAt)
	b = AppendInt32(b, 3, m.AdultCount)
	return AppendInt32(b, 4, m.ChildCount)
}

func (m *CreateReservationRequest) UnmarshalWire(b []byte) error {
	*m = CreateReservationRequest{}
	return DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return ConsumeUint64(typ, b, &m.ContentScheduleID)
		case 2:
			return ConsumeString(typ, b, &m.RequestedAt)
		case 3:
			return ConsumeInt32(typ, b, &m.AdultCount)
		case 4:
			return ConsumeInt32(typ, b, &m.ChildCount)
		}
		return 0
	})
}

// CreateReservationResponse reports the outcome of a create call.
// Admission and capacity rejections are answered with Success false.
//
//	message CreateReservationResponse {
//	  bool success = 1;
//	  string message = 2;
//	  uint64 reservation_id = 3;
//	}
type CreateReservationResponse struct {
	Success       bool
	Message       string
	ReservationID uint64
}

func (m *CreateReservationResponse) MarshalWire() []byte {
	var b []byte
	b = AppendBool(b, 1, m.Success)
	b = AppendString(b, 2, m.Message)
	return AppendUint64(b, 3, m.ReservationID)
}

func (m *CreateReservationResponse) UnmarshalWire(b []byte) error {
	*m = CreateReservationResponse{}
	return DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return ConsumeBool(typ, b, &m.Success)
		case 2:
			return ConsumeString(typ, b, &m.Message)
		case 3:
			return ConsumeUint64(typ, b, &m.ReservationID)
		}
		return 0
	})
}

// UsersByScheduleRequest selects a schedule by its decimal id.
//
//	message ContentScheduleRequest { string content_schedule_id = 1; }
type UsersByScheduleRequest struct {
	ContentScheduleID string
}

func (m *UsersByScheduleRequest) MarshalWire() []byte {
	return AppendString(nil, 1, m.ContentScheduleID)
}

func (m *UsersByScheduleRequest) UnmarshalWire(b []byte) error {
	*m = UsersByScheduleRequest{}
	return DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return ConsumeString(typ, b, &m.ContentScheduleID)
		}
		return 0
	})
}

// UsersByScheduleResponse lists the users holding live reservations.
//
//	message UserList { repeated string user_ids = 1; }
type UsersByScheduleResponse struct {
	UserIDs []string
}

func (m *UsersByScheduleResponse) MarshalWire() []byte {
	var b []byte
	for _, id := range m.UserIDs {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, id)
	}
	return b
}

func (m *UsersByScheduleResponse) UnmarshalWire(b []byte) error {
	*m = UsersByScheduleResponse{}
	return DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != 1 {
			return 0
		}
		var id string
		n := ConsumeString(typ, b, &id)
		if n > 0 {
			m.UserIDs = append(m.UserIDs, id)
		}
		return n
	})
}
