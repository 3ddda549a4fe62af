// Package command binds the server's command surface to the dispatch
// registry. Command names are stable wire strings; changing one breaks
// deployed clients.
package command

// Request/response commands
const (
	GetCurUser         = "GetCurUser"
	ChangeCurUserName  = "ChangeCurUserName"
	CreateRoom         = "CreateRoom"
	ListRoomSimpleInfo = "ListRoomSimpleInfo"
	LeaveRoom          = "LeaveRoom"
	EnterRoom          = "EnterRoom"
	ChangeGameConfig   = "ChangeGameConfig"
)

// Request/stream commands
const (
	AllRoomSimpleInfoStream = "AllRoomSimpleInfoStream"
	RoomDetailedInfoStream  = "RoomDetailedInfoStream"
)
