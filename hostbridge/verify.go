package hostbridge

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	uniffi "github.com/name1e5s/uniffi-go"
	"github.com/name1e5s/uniffi-go/errors"
)

const (
	exportContractVersion = "uniffi_contract_version"
	checksumPrefix        = "uniffi_checksum"
)

// VerifyContract checks the guest's declared contract version against the
// host's. Guests built before versioning carry no export; they pass.
func VerifyContract(ctx context.Context, mod api.Module) error {
	fn := mod.ExportedFunction(exportContractVersion)
	if fn == nil {
		Logger().Debug("guest declares no contract version",
			zap.String("module", mod.Name()))
		return nil
	}

	results, err := fn.Call(ctx)
	if err != nil {
		return errors.Wrap(errors.PhaseBind, errors.KindVersionMismatch, err, "contract version call failed")
	}
	if len(results) != 1 {
		return errors.Protocol(errors.PhaseBind, "%s returned %d values, want 1", exportContractVersion, len(results))
	}

	got := uint32(results[0])
	if got != uniffi.ContractVersion {
		return errors.VersionMismatch(uniffi.ContractVersion, got)
	}
	return nil
}

// VerifyChecksum compares the guest's compiled-in checksum for one method
// against the host-side value. Like the version check, absence passes:
// the export is per-method and optional.
func VerifyChecksum(ctx context.Context, mod api.Module, iface, method string) error {
	name := fmt.Sprintf("%s_%s_%s", checksumPrefix, iface, method)
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return nil
	}

	results, err := fn.Call(ctx)
	if err != nil {
		return errors.Wrap(errors.PhaseBind, errors.KindChecksumMismatch, err, "checksum call failed")
	}
	if len(results) != 1 {
		return errors.Protocol(errors.PhaseBind, "%s returned %d values, want 1", name, len(results))
	}

	want := uniffi.Checksum(iface, method)
	got := uint16(results[0])
	if got != want {
		return errors.ChecksumMismatch(iface, method, want, got)
	}
	return nil
}
