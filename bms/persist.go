package bms

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// Persisted layout: magic byte, cell count, float32 setpoint.
	// No version field; format changes are not backward compatible.
	configMagic = 0xB5

	offMagic     = 0
	offCellCount = 1
	offCurrent   = 2

	// RegionSize is the minimum byte-storage capacity.
	RegionSize = 64
)

// Storage is the non-volatile byte region capability. Writes are
// buffered until Commit, which applies them as a unit.
type Storage interface {
	ReadByte(addr int) (byte, error)
	WriteByte(addr int, val byte) error
	Commit() error
}

func getFloat32(st Storage, addr int) (float32, error) {
	var buf [4]byte
	for i := range buf {
		b, err := st.ReadByte(addr + i)
		if err != nil {
			return 0, err
		}
		buf[i] = b
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

func putFloat32(st Storage, addr int, val float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(val))
	for i := range buf {
		if err := st.WriteByte(addr+i, buf[i]); err != nil {
			return err
		}
	}
	return nil
}

// ConfigStore persists the cell count and current setpoint across
// power cycles.
type ConfigStore struct {
	logger  Logger
	storage Storage
}

func NewConfigStore(storage Storage, logger Logger) *ConfigStore {
	return &ConfigStore{
		logger:  logger,
		storage: storage,
	}
}

// Load restores the persisted configuration into the store. A missing
// magic byte means the region is uninitialized (or unreadable, the two
// are not distinguished): the store's current defaults are written
// back instead.
func (c *ConfigStore) Load(store *Store) error {
	magic, err := c.storage.ReadByte(offMagic)
	if err != nil {
		return fmt.Errorf("failed to read config magic: %v", err)
	}

	if magic != configMagic {
		c.logger.Info("Config region uninitialized, writing defaults")
		return c.Save(store.CellCount(), store.CurrentSetting())
	}

	count, err := c.storage.ReadByte(offCellCount)
	if err != nil {
		return fmt.Errorf("failed to read cell count: %v", err)
	}
	if count >= 1 && count <= MaxCells {
		store.SetCellCount(int(count))
	} else {
		c.logger.Warn("Persisted cell count %d out of range, keeping %d", count, store.CellCount())
	}

	current, err := getFloat32(c.storage, offCurrent)
	if err != nil {
		return fmt.Errorf("failed to read current setpoint: %v", err)
	}
	f := float64(current)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		c.logger.Warn("Persisted setpoint %v invalid, resetting to 0", f)
		f = 0
	}
	store.SetCurrentSetting(f)

	c.logger.Info("Config loaded: cells=%d current=%.3f A", store.CellCount(), f)
	return nil
}

// Save writes magic, cell count and setpoint, committed atomically.
func (c *ConfigStore) Save(cellCount int, current float64) error {
	if err := c.storage.WriteByte(offMagic, configMagic); err != nil {
		return fmt.Errorf("failed to write config magic: %v", err)
	}
	if err := c.storage.WriteByte(offCellCount, byte(clampCellCount(cellCount))); err != nil {
		return fmt.Errorf("failed to write cell count: %v", err)
	}
	if err := putFloat32(c.storage, offCurrent, float32(current)); err != nil {
		return fmt.Errorf("failed to write current setpoint: %v", err)
	}
	if err := c.storage.Commit(); err != nil {
		return fmt.Errorf("failed to commit config: %v", err)
	}
	return nil
}
