// internal/discovery/usb/database.go
package usb

import (
	"strconv"
	"strings"
)

// ID is a USB vendor or product identifier
type ID uint16

// ParseID parses the hex form the OS enumerator reports, e.g. "0403" or "0x0403"
func ParseID(s string) (ID, bool) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, false
	}
	return ID(v), true
}

// DeviceDatabase identifies common USB to serial bridges
type DeviceDatabase struct {
	vendors map[ID]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Name     string
	products map[ID]*ProductInfo
}

// ProductInfo describes one bridge chip or board
type ProductInfo struct {
	Model string
}

// NewDeviceDatabase creates and initializes the device database
func NewDeviceDatabase() *DeviceDatabase {
	db := &DeviceDatabase{
		vendors: make(map[ID]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

func (db *DeviceDatabase) initializeDatabase() {
	db.AddVendor(0x0403, &VendorInfo{Name: "FTDI"})
	db.AddProduct(0x0403, 0x6001, &ProductInfo{Model: "FT232R"})
	db.AddProduct(0x0403, 0x6010, &ProductInfo{Model: "FT2232"})
	db.AddProduct(0x0403, 0x6011, &ProductInfo{Model: "FT4232H"})
	db.AddProduct(0x0403, 0x6014, &ProductInfo{Model: "FT232H"})
	db.AddProduct(0x0403, 0x6015, &ProductInfo{Model: "FT231X"})

	db.AddVendor(0x067B, &VendorInfo{Name: "Prolific"})
	db.AddProduct(0x067B, 0x2303, &ProductInfo{Model: "PL2303"})
	db.AddProduct(0x067B, 0x23A3, &ProductInfo{Model: "PL2303GC"})

	db.AddVendor(0x10C4, &VendorInfo{Name: "Silicon Labs"})
	db.AddProduct(0x10C4, 0xEA60, &ProductInfo{Model: "CP210x"})
	db.AddProduct(0x10C4, 0xEA70, &ProductInfo{Model: "CP2105"})
	db.AddProduct(0x10C4, 0xEA71, &ProductInfo{Model: "CP2108"})

	db.AddVendor(0x1A86, &VendorInfo{Name: "WCH"})
	db.AddProduct(0x1A86, 0x7523, &ProductInfo{Model: "CH340"})
	db.AddProduct(0x1A86, 0x5523, &ProductInfo{Model: "CH341"})
	db.AddProduct(0x1A86, 0x55D4, &ProductInfo{Model: "CH9102"})

	db.AddVendor(0x2341, &VendorInfo{Name: "Arduino"})
	db.AddProduct(0x2341, 0x0043, &ProductInfo{Model: "Uno R3"})
	db.AddProduct(0x2341, 0x0042, &ProductInfo{Model: "Mega 2560 R3"})
	db.AddProduct(0x2341, 0x8036, &ProductInfo{Model: "Leonardo"})

	db.AddVendor(0x303A, &VendorInfo{Name: "Espressif"})
	db.AddProduct(0x303A, 0x1001, &ProductInfo{Model: "USB JTAG/serial debug unit"})

	db.AddVendor(0x0483, &VendorInfo{Name: "STMicroelectronics"})
	db.AddProduct(0x0483, 0x5740, &ProductInfo{Model: "Virtual COM Port"})
	db.AddProduct(0x0483, 0x374B, &ProductInfo{Model: "ST-LINK/V2-1"})

	db.AddVendor(0x2E8A, &VendorInfo{Name: "Raspberry Pi"})
	db.AddProduct(0x2E8A, 0x0005, &ProductInfo{Model: "Pico (MicroPython)"})
	db.AddProduct(0x2E8A, 0x000A, &ProductInfo{Model: "Pico SDK CDC UART"})

	db.AddVendor(0x04D8, &VendorInfo{Name: "Microchip"})
	db.AddProduct(0x04D8, 0x000A, &ProductInfo{Model: "CDC RS-232 Emulation"})
	db.AddProduct(0x04D8, 0x00DD, &ProductInfo{Model: "MCP2221"})
}

// IsKnownVendor checks if a vendor ID is in the database
func (db *DeviceDatabase) IsKnownVendor(vendorID ID) bool {
	_, exists := db.vendors[vendorID]
	return exists
}

// GetVendorInfo retrieves vendor information
func (db *DeviceDatabase) GetVendorInfo(vendorID ID) *VendorInfo {
	return db.vendors[vendorID]
}

// GetProductInfo retrieves product information from vendor
func (vi *VendorInfo) GetProductInfo(productID ID) *ProductInfo {
	return vi.products[productID]
}

// Identify returns the vendor name and product model for hex VID/PID
// strings. Unknown parts come back empty.
func (db *DeviceDatabase) Identify(vid, pid string) (vendor, product string) {
	vendorID, ok := ParseID(vid)
	if !ok {
		return "", ""
	}
	vi := db.vendors[vendorID]
	if vi == nil {
		return "", ""
	}

	productID, ok := ParseID(pid)
	if !ok {
		return vi.Name, ""
	}
	if pi := vi.GetProductInfo(productID); pi != nil {
		return vi.Name, pi.Model
	}
	return vi.Name, ""
}

// GetTotalProductCount returns total number of known products
func (db *DeviceDatabase) GetTotalProductCount() int {
	total := 0
	for _, vendor := range db.vendors {
		total += len(vendor.products)
	}
	return total
}

// AddVendor adds a new vendor to the database
func (db *DeviceDatabase) AddVendor(vendorID ID, info *VendorInfo) {
	if info.products == nil {
		info.products = make(map[ID]*ProductInfo)
	}
	db.vendors[vendorID] = info
}

// AddProduct adds a new product to an existing vendor
func (db *DeviceDatabase) AddProduct(vendorID, productID ID, info *ProductInfo) {
	if vendor, exists := db.vendors[vendorID]; exists {
		vendor.products[productID] = info
	}
}
