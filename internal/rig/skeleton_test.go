package rig

import (
	"encoding/json"
	"testing"
)

func TestBoneIDJSONUsesNames(t *testing.T) {
	data, err := json.Marshal(BoneLeftUpperArm)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"left_upper_arm"` {
		t.Errorf("encoded as %s", data)
	}

	var b BoneID
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if b != BoneLeftUpperArm {
		t.Errorf("round trip gave %v", b)
	}
}

func TestBoneIDJSONRejectsUnknownNames(t *testing.T) {
	var b BoneID
	if err := json.Unmarshal([]byte(`"left_tentacle"`), &b); err == nil {
		t.Error("unknown bone name must fail to decode")
	}
}

func TestBoneIDByName(t *testing.T) {
	for i := 0; i < BoneCount; i++ {
		id := BoneID(i)
		got, ok := BoneIDByName(id.String())
		if !ok || got != id {
			t.Errorf("BoneIDByName(%q) = %v, %v", id.String(), got, ok)
		}
	}
	if _, ok := BoneIDByName("nope"); ok {
		t.Error("unknown name resolved")
	}
}
