package storage

import (
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"wingsuite-api/domain"
)

// Each collection lives in its own table under a single fixed partition;
// RowKey carries the document id. List- and map-valued fields are stored as
// JSON-encoded string properties because table properties are flat.
const (
	unitPartition = "unit"
	userPartition = "user"
	taskPartition = "task"
)

type unitEntity struct {
	aztables.Entity
	Name      string `json:"Name"`
	UnitType  string `json:"UnitType"`
	Parent    string `json:"Parent"`
	Children  string `json:"Children"`
	Officers  string `json:"Officers"`
	Members   string `json:"Members"`
	Frontpage string `json:"Frontpage"`
	Channels  string `json:"Channels"`
}

type userEntity struct {
	aztables.Entity
	FirstName     string `json:"FirstName"`
	LastName      string `json:"LastName"`
	MiddleInitial string `json:"MiddleInitial"`
	Email         string `json:"Email"`
	Rank          string `json:"Rank"`
	Units         string `json:"Units"`
	Permissions   string `json:"Permissions"`
}

type taskEntity struct {
	aztables.Entity
	FromUser           string `json:"FromUser"`
	Name               string `json:"Name"`
	Description        string `json:"Description"`
	Suspense           int64  `json:"Suspense,string"`
	SuspenseType       string `json:"Suspense@odata.type"`
	AutoAcceptRequests bool   `json:"AutoAcceptRequests"`
	Reminders          string `json:"Reminders"`
	Incomplete         string `json:"Incomplete"`
	Pending            string `json:"Pending"`
	Complete           string `json:"Complete"`
}

func encodeStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	data, _ := sonic.Marshal(v)
	return string(data)
}

func decodeStrings(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := sonic.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func encodeInt64s(v []int64) string {
	if v == nil {
		v = []int64{}
	}
	data, _ := sonic.Marshal(v)
	return string(data)
}

func decodeInt64s(s string) []int64 {
	if s == "" {
		return nil
	}
	var out []int64
	if err := sonic.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func encodeNotes(v map[string]string) string {
	if v == nil {
		v = map[string]string{}
	}
	data, _ := sonic.Marshal(v)
	return string(data)
}

func decodeNotes(s string) map[string]string {
	out := map[string]string{}
	if s == "" {
		return out
	}
	if err := sonic.Unmarshal([]byte(s), &out); err != nil {
		return map[string]string{}
	}
	return out
}

func encodeUnit(u domain.Unit) ([]byte, error) {
	ent := unitEntity{
		Entity:    aztables.Entity{PartitionKey: unitPartition, RowKey: u.ID},
		Name:      u.Name,
		UnitType:  u.Type,
		Parent:    u.Parent,
		Children:  encodeStrings(u.Children),
		Officers:  encodeStrings(u.Officers),
		Members:   encodeStrings(u.Members),
		Frontpage: u.Frontpage,
		Channels:  string(u.Channels),
	}
	return sonic.Marshal(ent)
}

func decodeUnit(data []byte) (domain.Unit, error) {
	var ent unitEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Unit{}, err
	}
	unit := domain.Unit{
		ID:        ent.RowKey,
		Name:      ent.Name,
		Type:      ent.UnitType,
		Parent:    ent.Parent,
		Children:  decodeStrings(ent.Children),
		Officers:  decodeStrings(ent.Officers),
		Members:   decodeStrings(ent.Members),
		Frontpage: ent.Frontpage,
	}
	if ent.Channels != "" {
		unit.Channels = []byte(ent.Channels)
	}
	return unit, nil
}

func encodeUser(u domain.User) ([]byte, error) {
	ent := userEntity{
		Entity:        aztables.Entity{PartitionKey: userPartition, RowKey: u.ID},
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		MiddleInitial: u.MiddleInitial,
		Email:         u.Email,
		Rank:          u.Rank,
		Units:         encodeStrings(u.Units),
		Permissions:   encodeStrings(u.Permissions),
	}
	return sonic.Marshal(ent)
}

func decodeUser(data []byte) (domain.User, error) {
	var ent userEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:            ent.RowKey,
		FirstName:     ent.FirstName,
		LastName:      ent.LastName,
		MiddleInitial: ent.MiddleInitial,
		Email:         ent.Email,
		Rank:          ent.Rank,
		Units:         decodeStrings(ent.Units),
		Permissions:   decodeStrings(ent.Permissions),
	}, nil
}

func encodeTask(t domain.Task) ([]byte, error) {
	ent := taskEntity{
		Entity:             aztables.Entity{PartitionKey: taskPartition, RowKey: t.ID},
		FromUser:           t.FromUser,
		Name:               t.Name,
		Description:        t.Description,
		Suspense:           t.Suspense,
		SuspenseType:       "Edm.Int64",
		AutoAcceptRequests: t.AutoAcceptRequests,
		Reminders:          encodeInt64s(t.Reminders),
		Incomplete:         encodeNotes(t.Incomplete),
		Pending:            encodeNotes(t.Pending),
		Complete:           encodeNotes(t.Complete),
	}
	return sonic.Marshal(ent)
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:                 ent.RowKey,
		FromUser:           ent.FromUser,
		Name:               ent.Name,
		Description:        ent.Description,
		Suspense:           ent.Suspense,
		AutoAcceptRequests: ent.AutoAcceptRequests,
		Reminders:          decodeInt64s(ent.Reminders),
		Incomplete:         decodeNotes(ent.Incomplete),
		Pending:            decodeNotes(ent.Pending),
		Complete:           decodeNotes(ent.Complete),
	}, nil
}
