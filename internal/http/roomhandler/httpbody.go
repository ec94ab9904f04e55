package roomhandler

import "collabhub/internal/ws"

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListRoomsQuery struct {
	Limit  int `form:"limit,default=50" binding:"gte=0,lte=500"`
	Offset int `form:"offset,default=0" binding:"gte=0"`
} // @name ListRoomsQuery

type ListRoomsResponse struct {
	Total int            `json:"total"`
	Rooms []ws.RoomStats `json:"rooms"`
} // @name ListRoomsResponse

type PresenceResponse struct {
	RoomID      ws.RoomID     `json:"room_id"`
	ActiveUsers []ws.UserView `json:"active_users"`
} // @name PresenceResponse
