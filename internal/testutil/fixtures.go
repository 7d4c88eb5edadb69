package testutil

// SampleComplianceText is a multi-sentence pharmaceutical-compliance
// passage long enough to split into several chunks at small chunk sizes.
const SampleComplianceText = `Good Manufacturing Practice requires that every batch record be reviewed by the quality unit before release. The review must confirm that all critical process parameters stayed within their validated ranges. Deviations discovered during review are documented and investigated before the batch is dispositioned. Corrective and preventive actions arising from the investigation are tracked to closure. Annual product quality reviews aggregate batch data to detect adverse trends. Stability studies must follow the approved protocol and use validated analytical methods. Out-of-specification results trigger a laboratory investigation before any retest. Equipment used in production must be qualified and calibrated on a defined schedule. Cleaning validation demonstrates that residues are reduced below the acceptance limit. Training records must show that each operator is qualified for the tasks they perform.`
