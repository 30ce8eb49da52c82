package mqtt

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/ohowland/sldcore/internal/pkg/msg"
	"gotest.tools/v3/assert"
)

func TestGetConfig(t *testing.T) {
	h, err := New("./mqtt_config_test.json", msg.NewPublisher(uuid.New()))
	assert.NilError(t, err)
	assert.Equal(t, h.config.Broker, "tcp://localhost:1883")
	assert.Equal(t, h.config.QoS, byte(1))
	assert.Equal(t, h.topic(msg.ElementChanged), "plant/sld/element/changed")
}

func TestRejectsBadConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "mqtt")
	assert.NilError(t, err)
	defer os.RemoveAll(dir)

	for body, want := range map[string]string{
		`{}`: "no Broker",
		`{"Broker": "tcp://localhost:1883", "QoS": 3}`: "out of range",
	} {
		path := filepath.Join(dir, "mqtt.json")
		assert.NilError(t, ioutil.WriteFile(path, []byte(body), 0644))
		_, err := New(path, msg.NewPublisher(uuid.New()))
		assert.ErrorContains(t, err, want)
	}
}
