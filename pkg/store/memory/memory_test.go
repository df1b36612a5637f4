package memory

import (
	"testing"

	"github.com/sigweihq/beatmarket/pkg/store"
	"github.com/sigweihq/beatmarket/pkg/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}
