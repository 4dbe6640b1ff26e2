package usftp

// Wire constants for SFTP version 3, draft-ietf-secsh-filexfer-02.
const (
	sshFxpInit     = 1
	sshFxpVersion  = 2
	sshFxpOpen     = 3
	sshFxpClose    = 4
	sshFxpRead     = 5
	sshFxpWrite    = 6
	sshFxpLstat    = 7
	sshFxpFstat    = 8
	sshFxpSetstat  = 9
	sshFxpFsetstat = 10
	sshFxpOpendir  = 11
	sshFxpReaddir  = 12
	sshFxpRemove   = 13
	sshFxpMkdir    = 14
	sshFxpRmdir    = 15
	sshFxpRealpath = 16
	sshFxpStat     = 17
	sshFxpRename   = 18
	sshFxpReadlink = 19
	sshFxpSymlink  = 20
	sshFxpExtended = 200

	sshFxpStatus = 101
	sshFxpHandle = 102
	sshFxpData   = 103
	sshFxpName   = 104
	sshFxpAttrs  = 105
)

// Attribute flag bits (fxp_attrs flags word).
const (
	sshFileXferAttrSize        = 0x00000001
	sshFileXferAttrUIDGID      = 0x00000002
	sshFileXferAttrPermissions = 0x00000004
	sshFileXferAttrACmodTime   = 0x00000008
	sshFileXferAttrExtended    = 0x80000000
)

// Status codes (SSH_FX_*), indices into the fixed message table.
const (
	sshFxOk               = 0
	sshFxEOF              = 1
	sshFxNoSuchFile       = 2
	sshFxPermissionDenied = 3
	sshFxFailure          = 4
	sshFxBadMessage       = 5
	sshFxNoConnection     = 6
	sshFxConnectionLost   = 7
	sshFxOPUnsupported    = 8
)

// sftpProtocolVersion is the only version this core speaks.
const sftpProtocolVersion = 3

// requestIDOffset is the smallest request id the allocator will hand out;
// values below it are reserved.
const requestIDOffset = 256

// Open-flags bits for SSH_FXP_OPEN. The core passes the flags word
// through verbatim and does not interpret it.
const (
	sshFxfRead   = 0x00000001
	sshFxfWrite  = 0x00000002
	sshFxfAppend = 0x00000004
	sshFxfCreat  = 0x00000008
	sshFxfTrunc  = 0x00000010
	sshFxfExcl   = 0x00000020
)

// defaultMaxPacket bounds the data an inbound packet may carry (beyond its
// reply header) unless overridden with WithMaxPacket.
const defaultMaxPacket = 32768
